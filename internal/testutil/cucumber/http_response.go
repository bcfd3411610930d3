package cucumber

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/cucumber/godog"
	"github.com/itchyny/gojq"
	"github.com/pmezard/go-difflib/difflib"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^the response code should be (\d+)$`, s.theResponseCodeShouldBe)
		ctx.Step(`^the response should match json:$`, s.TheResponseShouldMatchJSONDoc)
		ctx.Step(`^the response should contain json:$`, s.TheResponseShouldContainJSONDoc)
		ctx.Step(`^the response should contain "([^"]*)"$`, s.theResponseShouldContain)
		ctx.Step(`^the response should be empty$`, s.theResponseShouldBeEmpty)
		ctx.Step(`^the response should match:$`, s.theResponseShouldMatchTextDoc)
		ctx.Step(`^I store the "([^"]*)" selection from the response as \${([^}]*)}$`, s.iStoreTheSelectionFromTheResponseAs)
		ctx.Step(`^I store the \${([^}]*)} as \${([^}]*)}$`, s.iStoreVariableAsVariable)
		ctx.Step(`^the "(.*)" selection from the response should match "([^"]*)"$`, s.theSelectionFromTheResponseShouldMatch)
		ctx.Step(`^the "([^"]*)" selection from the response should match json:$`, s.theSelectionFromTheResponseShouldMatchJSON)
		ctx.Step(`^the response header "([^"]*)" should match "([^"]*)"$`, s.theResponseHeaderShouldMatch)
		ctx.Step(`^the response header "([^"]*)" should start with "([^"]*)"$`, s.theResponseHeaderShouldStartWith)
		ctx.Step(`^\${([^}]*)} is not empty$`, s.variableIsNotEmpty)
		ctx.Step(`^\${([^}]*)} should contain json:$`, s.theVariableShouldContainJSON)
	})
}

func textDiff(expected, actual string) error {
	if expected == actual {
		return nil
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	return fmt.Errorf("actual does not match expected, diff:\n%s", diff)
}

func (s *TestScenario) variableIsNotEmpty(name string) error {
	value, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if value == nil || value == "" {
		return fmt.Errorf("variable ${%s} is empty", name)
	}
	return nil
}

func (s *TestScenario) theResponseCodeShouldBe(expected int) error {
	session := s.Session()
	if session.Resp == nil {
		return fmt.Errorf("no HTTP response available")
	}
	if actual := session.Resp.StatusCode; expected != actual {
		return fmt.Errorf("expected response code to be: %d, but actual is: %d, body: %s", expected, actual, string(session.RespBytes))
	}
	return nil
}

func (s *TestScenario) TheResponseShouldMatchJSONDoc(expected *godog.DocString) error {
	session := s.Session()
	if len(session.RespBytes) == 0 {
		return fmt.Errorf("got an empty response from server, expected a json body")
	}
	return s.JSONMustMatch(string(session.RespBytes), expected.Content, true)
}

func (s *TestScenario) TheResponseShouldContainJSONDoc(expected *godog.DocString) error {
	session := s.Session()
	if len(session.RespBytes) == 0 {
		return fmt.Errorf("got an empty response from server, expected a json body")
	}
	return s.JSONMustContain(string(session.RespBytes), expected.Content, true)
}

func (s *TestScenario) theVariableShouldContainJSON(variableName string, expected *godog.DocString) error {
	expanded, err := s.Expand(fmt.Sprintf("${%s}", variableName))
	if err != nil {
		return err
	}
	return s.JSONMustContain(expanded, expected.Content, true)
}

func (s *TestScenario) theResponseShouldContain(expected string) error {
	body := string(s.Session().RespBytes)
	if !strings.Contains(body, expected) {
		return fmt.Errorf("expected response to contain '%s', but it does not. Response body: %s", expected, body)
	}
	return nil
}

func (s *TestScenario) theResponseShouldBeEmpty() error {
	if body := s.Session().RespBytes; len(body) != 0 {
		return fmt.Errorf("expected an empty response, got: %s", string(body))
	}
	return nil
}

func (s *TestScenario) theResponseShouldMatchTextDoc(expected *godog.DocString) error {
	expanded, err := s.Expand(expected.Content)
	if err != nil {
		return err
	}
	return textDiff(expanded, string(s.Session().RespBytes))
}

func (s *TestScenario) theResponseHeaderShouldMatch(header, expected string) error {
	session := s.Session()
	expanded, err := s.Expand(expected)
	if err != nil {
		return err
	}
	if actual := session.Resp.Header.Get(header); expanded != actual {
		return fmt.Errorf("response header '%s' does not match expected: %v, actual: %v, body:\n%s", header, expanded, actual, string(session.RespBytes))
	}
	return nil
}

func (s *TestScenario) theResponseHeaderShouldStartWith(header, prefix string) error {
	session := s.Session()
	prefix, err := s.Expand(prefix)
	if err != nil {
		return err
	}
	if actual := session.Resp.Header.Get(header); !strings.HasPrefix(actual, prefix) {
		return fmt.Errorf("response header '%s' does not start with prefix: %v, actual: %v", header, prefix, actual)
	}
	return nil
}

func (s *TestScenario) iStoreVariableAsVariable(name, as string) error {
	value, err := s.Resolve(name)
	if err != nil {
		return err
	}
	s.Variables[as] = value
	return nil
}

// selectFromResponse runs a gojq selector over the last response body and
// returns its first result.
func (s *TestScenario) selectFromResponse(selector string) (any, error) {
	doc, err := s.Session().RespJSON()
	if err != nil {
		return nil, err
	}
	if selector != "" && (unicode.IsLetter(rune(selector[0])) || selector[0] == '_') {
		selector = "." + selector
	}
	query, err := gojq.Parse(selector)
	if err != nil {
		return nil, err
	}
	iter := query.Run(doc)
	next, found := iter.Next()
	if !found {
		return nil, fmt.Errorf("expected JSON does not have node that matches selector: %s", selector)
	}
	if err, ok := next.(error); ok {
		return nil, fmt.Errorf("selector %s: %w", selector, err)
	}
	return next, nil
}

func (s *TestScenario) iStoreTheSelectionFromTheResponseAs(selector, as string) error {
	value, err := s.selectFromResponse(selector)
	if err != nil {
		return err
	}
	s.Variables[as] = value
	return nil
}

func (s *TestScenario) theSelectionFromTheResponseShouldMatch(selector, expected string) error {
	actual, err := s.selectFromResponse(selector)
	if err != nil {
		return err
	}
	expected, err = s.Expand(expected)
	if err != nil {
		return err
	}
	text := "null"
	if actual != nil {
		text = fmt.Sprintf("%v", actual)
	}
	if text != expected {
		return fmt.Errorf("selected JSON does not match. expected: %v, actual: %v", expected, text)
	}
	return nil
}

func (s *TestScenario) theSelectionFromTheResponseShouldMatchJSON(selector string, expected *godog.DocString) error {
	actual, err := s.selectFromResponse(selector)
	if err != nil {
		return err
	}
	data, err := json.Marshal(actual)
	if err != nil {
		return err
	}
	return s.JSONMustMatch(string(data), expected.Content, true)
}
