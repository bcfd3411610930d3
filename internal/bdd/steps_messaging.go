package bdd

import (
	"context"
	"fmt"
	"strings"

	"github.com/chirino/messaging-service/internal/testutil/cucumber"
	"github.com/cucumber/godog"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		m := &messagingSteps{s: s}
		ctx.Step(`^the following users exist:$`, m.theFollowingUsersExist)
		ctx.Step(`^I create a conversation with "([^"]*)" as \${([^}]*)}$`, m.iCreateAConversationWith)
		ctx.Step(`^I send "([^"]*)" to \${([^}]*)} as \${([^}]*)}$`, m.iSendMessageTo)
		ctx.Step(`^I send "([^"]*)" to \${([^}]*)}$`, m.iSendMessage)
	})
}

type messagingSteps struct {
	s *cucumber.TestScenario
}

// theFollowingUsersExist seeds users directly. The table header names the
// columns: id and username are required, email, first_name and last_name optional.
func (m *messagingSteps) theFollowingUsersExist(table *godog.Table) error {
	if m.s.Suite.DB == nil {
		return fmt.Errorf("no TestDB configured")
	}
	if len(table.Rows) < 2 {
		return fmt.Errorf("expected a header row and at least one user")
	}
	header := table.Rows[0].Cells
	for _, row := range table.Rows[1:] {
		user := map[string]string{}
		for i, cell := range row.Cells {
			user[header[i].Value] = strings.ReplaceAll(cell.Value, "'", "''")
		}
		if user["username"] == "" {
			user["username"] = user["id"]
		}
		stmt := fmt.Sprintf(
			"INSERT INTO users (id, username, email, first_name, last_name) VALUES ('%s', '%s', '%s', '%s', '%s')",
			user["id"], user["username"], user["email"], user["first_name"], user["last_name"])
		if _, err := m.s.Suite.DB.ExecSQL(context.Background(), stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *messagingSteps) iCreateAConversationWith(participants, as string) error {
	ids := strings.Split(participants, ",")
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			quoted = append(quoted, fmt.Sprintf("%q", id))
		}
	}
	body := &godog.DocString{Content: fmt.Sprintf(`{"participant_ids": [%s]}`, strings.Join(quoted, ", "))}
	if err := m.s.SendHTTPRequestWithJSONBody("POST", "/api/conversations", body); err != nil {
		return err
	}
	return m.storeCreated("conversation_id", as)
}

func (m *messagingSteps) iSendMessage(text, conversation string) error {
	return m.iSendMessageTo(text, conversation, "")
}

func (m *messagingSteps) iSendMessageTo(text, conversation, as string) error {
	conversationID, err := m.s.ResolveString(conversation)
	if err != nil {
		return err
	}
	body := &godog.DocString{Content: fmt.Sprintf(`{"conversation": %q, "message_body": %q}`, conversationID, text)}
	if err := m.s.SendHTTPRequestWithJSONBody("POST", "/api/messages", body); err != nil {
		return err
	}
	if as == "" {
		return m.expectCreated()
	}
	return m.storeCreated("message_id", as)
}

func (m *messagingSteps) expectCreated() error {
	session := m.s.Session()
	if session.Resp == nil || session.Resp.StatusCode != 201 {
		status := 0
		if session.Resp != nil {
			status = session.Resp.StatusCode
		}
		return fmt.Errorf("expected 201 Created, got %d: %s", status, string(session.RespBytes))
	}
	return nil
}

func (m *messagingSteps) storeCreated(field, as string) error {
	if err := m.expectCreated(); err != nil {
		return err
	}
	doc, err := m.s.Session().RespJSON()
	if err != nil {
		return err
	}
	obj, ok := doc.(map[string]interface{})
	if !ok || obj[field] == nil {
		return fmt.Errorf("response has no %s: %s", field, string(m.s.Session().RespBytes))
	}
	m.s.Variables[as] = obj[field]
	return nil
}
