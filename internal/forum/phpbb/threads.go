// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package phpbb

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/autobrr/magnetarr/internal/forum"
)

const (
	resultsXPath     = `//ul[contains(concat(' ', normalize-space(@class), ' '), ' topiclist ') and contains(concat(' ', normalize-space(@class), ' '), ' topics ')]`
	resultRowXPath   = `.//li[contains(concat(' ', normalize-space(@class), ' '), ' row ')]`
	topicTitleXPath  = `.//a[contains(concat(' ', normalize-space(@class), ' '), ' topictitle ')]`
	threadTitleXPath = `//h2[contains(concat(' ', normalize-space(@class), ' '), ' topic-title ')]`
	firstPostXPath   = `//div[contains(concat(' ', normalize-space(@class), ' '), ' post ') and starts-with(@id, 'p')]`
)

var (
	threadIDPattern = regexp.MustCompile(`[?&;]t=(\d+)`)
	postRefPattern  = regexp.MustCompile(`^p(\d+)$`)
)

// Search runs a title-only topic search over the configured subforums.
func (f *Forum) Search(ctx context.Context, query string) ([]forum.Thread, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	p, err := f.withSession(ctx, f.searchURL(query))
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", query)
	}

	container := htmlquery.FindOne(p.doc, resultsXPath)
	if container == nil {
		log.Debug().Str("query", query).Msg("no search results container on page")
		return nil, nil
	}

	var threads []forum.Thread
	for _, row := range htmlquery.Find(container, resultRowXPath) {
		link := htmlquery.FindOne(row, topicTitleXPath)
		if link == nil {
			continue
		}
		href := htmlquery.SelectAttr(link, "href")
		if !strings.Contains(href, "viewtopic.php") {
			continue
		}
		id := ThreadID(href)
		if id == "" {
			continue
		}
		threads = append(threads, forum.Thread{
			ID:    id,
			URL:   f.resolve(href),
			Title: strings.TrimSpace(htmlquery.InnerText(link)),
		})
	}

	log.Debug().Str("query", query).Int("threads", len(threads)).Msg("forum search done")
	return threads, nil
}

func (f *Forum) searchURL(query string) string {
	params := url.Values{}
	params.Set("keywords", query)
	params.Set("terms", "all")
	params.Set("author", "")
	for _, id := range f.subforums {
		params.Add("fid[]", strconv.Itoa(id))
	}
	params.Set("sc", "1")
	params.Set("sf", "titleonly")
	params.Set("sr", "topics")
	params.Set("sk", "t")
	params.Set("sd", "d")
	params.Set("st", "0")
	params.Set("ch", "300")
	params.Set("t", "0")
	params.Set("submit", "Cerca")
	return f.resolve("search.php") + "?" + params.Encode()
}

// ThreadURL is the canonical viewtopic address of a thread.
func (f *Forum) ThreadURL(id string) string {
	params := url.Values{}
	if f.threadForum > 0 {
		params.Set("f", strconv.Itoa(f.threadForum))
	}
	params.Set("t", id)
	return f.resolve("viewtopic.php") + "?" + params.Encode()
}

// FetchThread loads the first page of a thread.
func (f *Forum) FetchThread(ctx context.Context, threadID string) (*forum.Page, error) {
	if threadID == "" {
		return nil, forum.ErrThreadNotFound
	}

	p, err := f.withSession(ctx, f.ThreadURL(threadID))
	if err != nil {
		return nil, errors.Wrapf(err, "fetch thread %s", threadID)
	}

	title := ""
	if h := htmlquery.FindOne(p.doc, threadTitleXPath); h != nil {
		title = strings.TrimSpace(htmlquery.InnerText(h))
	}

	postRef := ""
	if post := htmlquery.FindOne(p.doc, firstPostXPath); post != nil {
		postRef = htmlquery.SelectAttr(post, "id")
	}

	if title == "" && postRef == "" {
		return nil, errors.Wrapf(forum.ErrThreadNotFound, "thread %s has no posts", threadID)
	}

	return &forum.Page{
		ThreadID: threadID,
		URL:      p.url,
		Title:    title,
		HTML:     p.body,
		PostRef:  postRef,
	}, nil
}

// FetchPost returns the HTML of one post, ref being the post anchor ("p12345").
func (f *Forum) FetchPost(ctx context.Context, ref string) (string, error) {
	m := postRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", errors.Errorf("invalid post reference %q", ref)
	}

	p, err := f.withSession(ctx, f.resolve("viewtopic.php")+"?p="+m[1])
	if err != nil {
		return "", errors.Wrapf(err, "fetch post %s", ref)
	}

	post := htmlquery.FindOne(p.doc, `//div[@id='`+ref+`']`)
	if post == nil {
		return "", errors.Errorf("post %s not on page", ref)
	}
	return htmlquery.OutputHTML(post, true), nil
}

// withSession fetches rawURL and logs in again once when the board answers
// with its login form.
func (f *Forum) withSession(ctx context.Context, rawURL string) (*page, error) {
	p, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !requiresLogin(p.doc) {
		return p, nil
	}

	log.Info().Str("forum", f.name).Msg("forum session expired, logging in again")
	if err := f.EnsureSession(ctx); err != nil {
		return nil, err
	}
	return f.get(ctx, rawURL)
}

func requiresLogin(doc *html.Node) bool {
	return htmlquery.FindOne(doc, loginFormXPath) != nil
}

// ThreadID extracts the topic id from a viewtopic link.
func ThreadID(href string) string {
	href = strings.ReplaceAll(href, "&amp;", "&")
	if m := threadIDPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}
