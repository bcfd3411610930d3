package cucumber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^the path prefix is "([^"]*)"$`, s.theAPIPrefixIs)
		ctx.Step(`^I (GET|POST|PUT|DELETE|PATCH) path "([^"]*)"$`, s.sendHTTPRequest)
		ctx.Step(`^I (GET|POST|PUT|DELETE|PATCH) path "([^"]*)" with json body:$`, s.SendHTTPRequestWithJSONBody)
		ctx.Step(`^I (GET|POST|PUT|DELETE|PATCH) path "([^"]*)" without authentication$`, s.sendHTTPRequestWithoutAuth)
		ctx.Step(`^I (GET|POST|PUT|DELETE|PATCH) path "([^"]*)" with query "([^"]*)"$`, s.sendHTTPRequestWithQuery)
		ctx.Step(`^I set the "([^"]*)" header to "([^"]*)"$`, s.iSetTheHeaderTo)
		ctx.Step(`^I wait up to "([^"]*)" seconds for a GET on path "([^"]*)" response code to match "([^"]*)"$`, s.iWaitUpToSecondsForAGETOnPathResponseCodeToMatch)
	})
}

func (s *TestScenario) theAPIPrefixIs(prefix string) error {
	s.PathPrefix = prefix
	return nil
}

func (s *TestScenario) sendHTTPRequest(method, path string) error {
	return s.SendHTTPRequestWithJSONBody(method, path, nil)
}

func (s *TestScenario) sendHTTPRequestWithQuery(method, path, rawQuery string) error {
	expanded, err := s.Expand(rawQuery)
	if err != nil {
		return err
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return s.sendHTTPRequest(method, path+sep+expanded)
}

func (s *TestScenario) sendHTTPRequestWithoutAuth(method, path string) error {
	session := s.Session()
	session.Header.Del("Authorization")
	saved := session.TestUser
	session.TestUser = nil
	defer func() { session.TestUser = saved }()
	return s.sendHTTPRequest(method, path)
}

// SendHTTPRequestWithJSONBody sends a request as the current user. Variables in
// the path and body are expanded first.
func (s *TestScenario) SendHTTPRequestWithJSONBody(method, path string, jsonTxt *godog.DocString) (err error) {
	defer func() {
		switch t := recover().(type) {
		case string:
			err = errors.New(t)
		case error:
			err = t
		}
	}()

	session := s.Session()

	var body io.Reader = http.NoBody
	if jsonTxt != nil {
		expanded, err := s.Expand(jsonTxt.Content)
		if err != nil {
			return err
		}
		body = bytes.NewBufferString(expanded)
	}

	expandedPath, err := s.Expand(path)
	if err != nil {
		return err
	}
	fullURL := s.Suite.APIURL + s.PathPrefix + expandedPath
	if u, err := url.Parse(expandedPath); err == nil && u.Scheme != "" {
		// Absolute URLs, such as a stored "next" link, are used as is.
		fullURL = expandedPath
	}

	if session.Resp != nil {
		_ = session.Resp.Body.Close()
	}
	session.Resp = nil
	session.SetRespBytes(nil)

	req, err := http.NewRequestWithContext(context.Background(), method, fullURL, body)
	if err != nil {
		return err
	}

	// Headers set by steps apply to one request, except Authorization.
	req.Header = session.Header
	session.Header = http.Header{}
	if auth := req.Header.Get("Authorization"); auth != "" {
		session.Header.Set("Authorization", auth)
	} else if session.TestUser != nil && session.TestUser.Subject != "" {
		req.Header.Set("Authorization", "Bearer "+session.TestUser.Subject)
	}
	if jsonTxt != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := session.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	session.Resp = resp
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	session.SetRespBytes(data)
	return nil
}

func (s *TestScenario) iSetTheHeaderTo(name, value string) error {
	expanded, err := s.Expand(value)
	if err != nil {
		return err
	}
	s.Session().Header.Set(name, expanded)
	return nil
}

func (s *TestScenario) iWaitUpToSecondsForAGETOnPathResponseCodeToMatch(timeout float64, path string, expected int) error {
	deadline := time.Now().Add(time.Duration(timeout * float64(time.Second)))
	var lastErr error
	for {
		lastErr = s.sendHTTPRequest(http.MethodGet, path)
		if lastErr == nil {
			lastErr = s.theResponseCodeShouldBe(expected)
			if lastErr == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met after %.f seconds: %w", timeout, lastErr)
		}
		time.Sleep(time.Duration(timeout * float64(time.Second) / 10.0))
	}
}
