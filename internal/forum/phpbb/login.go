// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package phpbb

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/autobrr/magnetarr/internal/forum"
)

const (
	loginFormXPath  = `//form[@id='login']`
	logoutLinkXPath = `//a[contains(@href, 'logout')]`
	errorBoxXPath   = `//div[contains(@class, 'error') or contains(@class, 'alert')]`
)

var loginFailureText = regexp.MustCompile(`(?i)login.*failed|invalid.*credentials|wrong.*password|access.*denied|password.*(?:errata|incorrect)`)

// EnsureSession checks the stored cookies against the board index and logs in
// again when they no longer authenticate. A fresh session is written to disk.
func (f *Forum) EnsureSession(ctx context.Context) error {
	f.login.Lock()
	defer f.login.Unlock()

	if ok, err := f.verify(ctx); err == nil && ok {
		log.Debug().Str("forum", f.name).Msg("stored session still valid")
		return nil
	} else if err != nil {
		log.Debug().Err(err).Str("forum", f.name).Msg("session check failed, logging in")
	}

	if err := f.loginWithRetry(ctx); err != nil {
		return err
	}

	if err := f.store.Save(); err != nil {
		log.Warn().Err(err).Msg("could not persist forum session")
	}
	return nil
}

func (f *Forum) verify(ctx context.Context) (bool, error) {
	p, err := f.get(ctx, f.resolve("index.php"))
	if err != nil {
		return false, err
	}
	return f.loggedIn(p.doc), nil
}

func (f *Forum) loginWithRetry(ctx context.Context) error {
	if f.username == "" || f.password == "" {
		return forum.ErrNoCredentials
	}

	err := retry.Do(
		func() error {
			err := f.submitLogin(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(f.loginAttempts)),
		retry.Delay(f.loginDelay),
		retry.MaxDelay(f.loginMaxDelay),
		retry.MaxJitter(f.loginDelay/2),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Info().
				Err(err).
				Str("forum", f.name).
				Uint("attempt", n+1).
				Int("attempts", f.loginAttempts).
				Msg("forum login failed, retrying")
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "%s login", f.name)
	}

	log.Info().Str("forum", f.name).Str("user", f.username).Msg("logged in to forum")
	return nil
}

// submitLogin fetches the login form, keeps its hidden fields and posts the credentials.
func (f *Forum) submitLogin(ctx context.Context) error {
	loginURL := f.resolve("ucp.php?mode=login")
	p, err := f.get(ctx, loginURL)
	if err != nil {
		return errors.Wrap(err, "could not load login form")
	}

	form := htmlquery.FindOne(p.doc, loginFormXPath)
	if form == nil {
		if f.loggedIn(p.doc) {
			return nil
		}
		return errors.Wrap(forum.ErrLoginFailed, "login form not found")
	}

	action := htmlquery.SelectAttr(form, "action")
	if action == "" {
		action = loginURL
	} else {
		action = f.resolve(action)
	}

	values := formValues(form)
	values.Set("username", f.username)
	values.Set("password", f.password)
	values.Set("login", "Login")
	values.Set("redirect", "./index.php")

	log.Debug().Str("action", action).Msg("submitting forum login")

	resp, err := f.postForm(ctx, action, values)
	if err != nil {
		return errors.Wrap(err, "could not submit login form")
	}

	if loginRejected(resp.doc) {
		return forum.ErrLoginFailed
	}
	if !f.loggedIn(resp.doc) {
		// some boards answer the POST with a bare redirect page
		ok, err := f.verify(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return forum.ErrLoginFailed
		}
	}
	return nil
}

// formValues collects every named input. Unchecked checkboxes are left out.
func formValues(form *html.Node) url.Values {
	values := url.Values{}
	for _, input := range htmlquery.Find(form, `.//input[@name]`) {
		name := htmlquery.SelectAttr(input, "name")
		typ := strings.ToLower(htmlquery.SelectAttr(input, "type"))
		value := htmlquery.SelectAttr(input, "value")
		if typ == "checkbox" || typ == "radio" {
			if !hasAttr(input, "checked") {
				continue
			}
			if value == "" {
				value = "on"
			}
		}
		values.Set(name, value)
	}
	return values
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// loggedIn reports whether a page was served to an authenticated user.
func (f *Forum) loggedIn(doc *html.Node) bool {
	if htmlquery.FindOne(doc, loginFormXPath) != nil {
		return false
	}
	if htmlquery.FindOne(doc, logoutLinkXPath) != nil {
		return true
	}
	if f.username == "" {
		return false
	}
	user := strings.ToLower(f.username)
	for _, n := range htmlquery.Find(doc, `//span|//div|//a`) {
		if strings.ToLower(strings.TrimSpace(directText(n))) == user {
			return true
		}
	}
	return false
}

func loginRejected(doc *html.Node) bool {
	if htmlquery.FindOne(doc, loginFormXPath) != nil {
		return true
	}
	for _, n := range htmlquery.Find(doc, errorBoxXPath) {
		text := strings.ToLower(htmlquery.InnerText(n))
		if strings.Contains(text, "login") || strings.Contains(text, "password") {
			return true
		}
	}
	body := htmlquery.FindOne(doc, `//body`)
	return body != nil && loginFailureText.MatchString(htmlquery.InnerText(body))
}

func directText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
