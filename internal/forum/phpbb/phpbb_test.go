// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package phpbb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/magnetarr/internal/forum"
	"github.com/autobrr/magnetarr/internal/session"
	"github.com/autobrr/magnetarr/internal/transport"
)

const (
	testUser = "sonarr"
	testPass = "hunter2"
	sidValue = "good-session"
)

const loginPage = `<html><body>
<form id="login" method="post" action="./ucp.php?mode=login">
  <input type="text" name="username" value="">
  <input type="password" name="password" value="">
  <input type="checkbox" name="autologin">
  <input type="checkbox" name="viewonline" checked>
  <input type="hidden" name="form_token" value="tok123">
  <input type="hidden" name="creation_time" value="1700000000">
  <input type="submit" name="login" value="Login">
</form>
%s
</body></html>`

const indexPage = `<html><body><a href="./ucp.php?mode=logout&amp;sid=abc">Esci [ sonarr ]</a></body></html>`

const searchPage = `<html><body>
<ul class="topiclist topics">
  <li class="row bg1"><dl><dt><a href="./viewtopic.php?f=28&amp;t=111" class="topictitle">Only Fools and Horses - Stagione 2</a></dt></dl></li>
  <li class="row bg2"><dl><dt><a href="./viewtopic.php?f=51&amp;t=123" class="topictitle">Only Murders in the Building - Stagione 5 (2025)</a></dt></dl></li>
  <li class="row bg1"><dl><dt><a href="./memberlist.php?u=2" class="username">admin</a></dt></dl></li>
</ul>
</body></html>`

const threadPage = `<html><head><title>Only Murders - MIRCrew</title></head><body>
<h2 class="topic-title"><a href="./viewtopic.php?t=123">Only Murders in the Building - Stagione 5 (2025)</a></h2>
<div id="p555" class="post has-profile bg2"><div class="postbody"><div class="content">
  Episodio 1 <a href="magnet:?xt=urn:btih:%040x">link</a>
</div></div></div>
<div id="p556" class="post has-profile bg1"><div class="postbody"><div class="content">thanks!</div></div></div>
</body></html>`

type fakeBoard struct {
	mu         sync.Mutex
	logins     int
	lastLogin  url.Values
	lastSearch url.Values
	lastThread url.Values
	server     *httptest.Server
}

func newFakeBoard(t *testing.T) *fakeBoard {
	t.Helper()
	b := &fakeBoard{}
	mux := http.NewServeMux()
	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			fmt.Fprintf(w, loginPage, "")
			return
		}
		fmt.Fprint(w, indexPage)
	})
	mux.HandleFunc("/ucp.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			fmt.Fprintf(w, loginPage, "")
			return
		}
		require.NoError(t, r.ParseForm())
		b.mu.Lock()
		b.logins++
		b.lastLogin = r.PostForm
		b.mu.Unlock()

		if r.PostForm.Get("username") != testUser || r.PostForm.Get("password") != testPass {
			fmt.Fprintf(w, loginPage, `<div class="error">La password inserita non è corretta. Wrong password.</div>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "phpbb3_sid", Value: sidValue, Path: "/"})
		fmt.Fprint(w, indexPage)
	})
	mux.HandleFunc("/search.php", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			fmt.Fprintf(w, loginPage, "")
			return
		}
		b.mu.Lock()
		b.lastSearch = r.URL.Query()
		b.mu.Unlock()
		fmt.Fprint(w, searchPage)
	})
	mux.HandleFunc("/viewtopic.php", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			fmt.Fprintf(w, loginPage, "")
			return
		}
		b.mu.Lock()
		b.lastThread = r.URL.Query()
		b.mu.Unlock()
		q := r.URL.Query()
		if q.Get("t") == "123" || q.Get("p") == "555" {
			fmt.Fprintf(w, threadPage, 1)
			return
		}
		http.NotFound(w, r)
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func authed(r *http.Request) bool {
	c, err := r.Cookie("phpbb3_sid")
	return err == nil && c.Value == sidValue
}

func newTestForum(t *testing.T, b *fakeBoard, typ, password string, store *session.Store) *Forum {
	t.Helper()
	f, err := New(forum.Config{
		Type:          typ,
		BaseURL:       b.server.URL,
		Username:      testUser,
		Password:      password,
		LoginAttempts: 2,
		HTTP:          transport.Options{Retry: transport.RetryPolicy{MaxRetries: -1}, Timeout: 5 * time.Second},
	}, store)
	require.NoError(t, err)
	f.loginDelay = time.Millisecond
	f.loginMaxDelay = 2 * time.Millisecond
	return f
}

func TestEnsureSession_LogsInAndPersists(t *testing.T) {
	b := newFakeBoard(t)
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := session.New(path)
	require.NoError(t, err)

	f := newTestForum(t, b, TypePHPBB, testPass, store)
	require.NoError(t, f.EnsureSession(context.Background()))

	assert.Equal(t, 1, b.logins)
	assert.Equal(t, "tok123", b.lastLogin.Get("form_token"))
	assert.Equal(t, "1700000000", b.lastLogin.Get("creation_time"))
	assert.Equal(t, "on", b.lastLogin.Get("viewonline"))
	assert.False(t, b.lastLogin.Has("autologin"))
	assert.Equal(t, "./index.php", b.lastLogin.Get("redirect"))

	_, err = os.Stat(path)
	require.NoError(t, err)

	// the stored session is reused
	require.NoError(t, f.EnsureSession(context.Background()))
	assert.Equal(t, 1, b.logins)

	restored, err := session.New(path)
	require.NoError(t, err)
	require.NoError(t, restored.Load())
	g := newTestForum(t, b, TypePHPBB, testPass, restored)
	require.NoError(t, g.EnsureSession(context.Background()))
	assert.Equal(t, 1, b.logins)
}

func TestEnsureSession_WrongPassword(t *testing.T) {
	b := newFakeBoard(t)
	f := newTestForum(t, b, TypePHPBB, "nope", nil)

	err := f.EnsureSession(context.Background())
	require.ErrorIs(t, err, forum.ErrLoginFailed)
	assert.Equal(t, 2, b.logins)
}

func TestEnsureSession_NoCredentials(t *testing.T) {
	b := newFakeBoard(t)
	f := newTestForum(t, b, TypePHPBB, "", nil)

	err := f.EnsureSession(context.Background())
	require.ErrorIs(t, err, forum.ErrNoCredentials)
	assert.Zero(t, b.logins)
}

func TestSearch_LogsInWhenSessionExpired(t *testing.T) {
	b := newFakeBoard(t)
	f := newTestForum(t, b, TypeMIRCrew, testPass, nil)

	threads, err := f.Search(context.Background(), "Only Murders in the Building Stagione 5")
	require.NoError(t, err)
	assert.Equal(t, 1, b.logins)

	require.Len(t, threads, 2)
	assert.Equal(t, "111", threads[0].ID)
	assert.Equal(t, "123", threads[1].ID)
	assert.Equal(t, "Only Murders in the Building - Stagione 5 (2025)", threads[1].Title)
	assert.Equal(t, b.server.URL+"/viewtopic.php?f=51&t=123", threads[1].URL)

	assert.Equal(t, []string{"28", "51", "52", "30"}, b.lastSearch["fid[]"])
	assert.Equal(t, "titleonly", b.lastSearch.Get("sf"))
	assert.Equal(t, "topics", b.lastSearch.Get("sr"))
	assert.Equal(t, "Only Murders in the Building Stagione 5", b.lastSearch.Get("keywords"))
}

func TestSearch_EmptyQuery(t *testing.T) {
	b := newFakeBoard(t)
	f := newTestForum(t, b, TypePHPBB, testPass, nil)

	threads, err := f.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, threads)
	assert.Nil(t, b.lastSearch)
}

func TestFetchThread(t *testing.T) {
	b := newFakeBoard(t)
	f := newTestForum(t, b, TypeMIRCrew, testPass, nil)
	require.NoError(t, f.EnsureSession(context.Background()))

	page, err := f.FetchThread(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", page.ThreadID)
	assert.Equal(t, "Only Murders in the Building - Stagione 5 (2025)", page.Title)
	assert.Equal(t, "p555", page.PostRef)
	assert.Contains(t, page.HTML, "magnet:?xt=urn:btih:")
	assert.Equal(t, "51", b.lastThread.Get("f"))

	_, err = f.FetchThread(context.Background(), "999")
	require.ErrorIs(t, err, forum.ErrThreadNotFound)

	_, err = f.FetchThread(context.Background(), "")
	require.ErrorIs(t, err, forum.ErrThreadNotFound)
}

func TestFetchPost(t *testing.T) {
	b := newFakeBoard(t)
	f := newTestForum(t, b, TypePHPBB, testPass, nil)
	require.NoError(t, f.EnsureSession(context.Background()))

	post, err := f.FetchPost(context.Background(), "p555")
	require.NoError(t, err)
	assert.Contains(t, post, `id="p555"`)
	assert.Contains(t, post, "Episodio 1")
	assert.NotContains(t, post, "thanks!")

	_, err = f.FetchPost(context.Background(), "555")
	require.Error(t, err)
}

func TestThreadID(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"./viewtopic.php?f=51&t=123", "123"},
		{"./viewtopic.php?f=51&amp;t=42&amp;sid=x", "42"},
		{"https://mircrew-releases.org/viewtopic.php?t=7", "7"},
		{"./viewtopic.php?p=555#p555", ""},
		{"./viewforum.php?f=51", ""},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, ThreadID(tt.href))
		})
	}
}

func TestRegistryPresets(t *testing.T) {
	f, err := forum.New(forum.Config{Type: TypeMIRCrew}, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeMIRCrew, f.Name())

	m, ok := f.(*Forum)
	require.True(t, ok)
	assert.Equal(t, MIRCrewBaseURL+"viewtopic.php?f=51&t=1", m.ThreadURL("1"))

	_, err = forum.New(forum.Config{Type: TypePHPBB}, nil)
	require.Error(t, err)

	g, err := New(forum.Config{Type: TypePHPBB, BaseURL: "https://board.example/forum"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://board.example/forum/viewtopic.php?t=9", g.ThreadURL("9"))
}
