package bdd

import (
	"fmt"
	"time"

	"github.com/chirino/messaging-service/internal/testutil/cucumber"
	"github.com/cucumber/godog"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		a := &authSteps{s: s}
		ctx.Step(`^I am authenticated as user "([^"]*)"$`, a.iAmAuthenticatedAsUser)
		ctx.Step(`^I authenticate as user "([^"]*)"$`, a.iAmAuthenticatedAsUser)
		ctx.Step(`^I am authenticated as user "([^"]*)" with a signed token$`, a.iAmAuthenticatedWithSignedToken)
		ctx.Step(`^I am authenticated with a token signed by "([^"]*)"$`, a.iAmAuthenticatedWithTokenSignedBy)
	})
}

type authSteps struct {
	s *cucumber.TestScenario
}

func (a *authSteps) setUser(name, bearer string) {
	a.s.Suite.Mu.Lock()
	defer a.s.Suite.Mu.Unlock()
	user := a.s.Users[name]
	if user == nil {
		user = &cucumber.TestUser{Name: name}
		a.s.Users[name] = user
	}
	user.Subject = bearer
	a.s.CurrentUser = name
}

// The bearer token is the user id when no JWT secret applies.
func (a *authSteps) iAmAuthenticatedAsUser(userID string) error {
	a.setUser(userID, userID)
	return nil
}

func (a *authSteps) iAmAuthenticatedWithSignedToken(userID string) error {
	secret, ok := a.s.Suite.Extra["jwtSecret"].(string)
	if !ok || secret == "" {
		return fmt.Errorf("the server under test has no JWT secret configured")
	}
	token, err := signToken(secret, userID)
	if err != nil {
		return err
	}
	a.setUser(userID, token)
	return nil
}

func (a *authSteps) iAmAuthenticatedWithTokenSignedBy(secret string) error {
	token, err := signToken(secret, "mallory")
	if err != nil {
		return err
	}
	a.setUser("mallory", token)
	return nil
}

func signToken(secret, userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": userID,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
