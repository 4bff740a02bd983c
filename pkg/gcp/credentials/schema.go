package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	TypeServiceAccount = "service_account"
	TypeAuthorizedUser = "authorized_user"
)

// Schema is a parsed credential file. Exactly one variant is set.
type Schema struct {
	ServiceAccount *ServiceAccount
	AuthorizedUser *AuthorizedUser
}

// Parse decodes credential JSON, routing on its "type" field.
// Unknown keys are ignored.
func Parse(data []byte) (*Schema, error) {
	return parse("", data)
}

func ParseFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FailedToLoad(path, err)
	}
	return parse(path, data)
}

func parse(source string, data []byte) (*Schema, error) {
	if !gjson.ValidBytes(data) {
		return nil, InvalidCredentials(source, "not valid JSON")
	}

	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return nil, InvalidCredentials(source, `missing "type" field`)
	}

	switch kind.String() {
	case TypeServiceAccount:
		var sa ServiceAccount
		if err := json.Unmarshal(data, &sa); err != nil {
			return nil, InvalidCredentials(source, err.Error())
		}
		if err := sa.validate(); err != nil {
			return nil, InvalidCredentials(source, err.Error())
		}
		return &Schema{ServiceAccount: &sa}, nil

	case TypeAuthorizedUser:
		var u AuthorizedUser
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, InvalidCredentials(source, err.Error())
		}
		if err := u.validate(); err != nil {
			return nil, InvalidCredentials(source, err.Error())
		}
		return &Schema{AuthorizedUser: &u}, nil

	default:
		return nil, InvalidCredentials(source, fmt.Sprintf("unsupported credential type %q", kind.String()))
	}
}

func (s *Schema) Kind() string {
	if s.ServiceAccount != nil {
		return TypeServiceAccount
	}
	return TypeAuthorizedUser
}

// Email is the service account identity, or empty for user credentials.
func (s *Schema) Email() string {
	if s.ServiceAccount != nil {
		return s.ServiceAccount.ClientEmail
	}
	return ""
}

// ProjectID is the service account's project, or empty for user credentials.
func (s *Schema) ProjectID() string {
	if s.ServiceAccount != nil {
		return s.ServiceAccount.ProjectID
	}
	return ""
}

func (s *Schema) Token(ctx context.Context, audience string) (string, error) {
	if s.ServiceAccount != nil {
		return s.ServiceAccount.AccessToken(audience)
	}
	if s.AuthorizedUser != nil {
		return s.AuthorizedUser.AccessToken(ctx)
	}
	return "", InvalidCredentials("", "empty credential schema")
}

type schemaTokenSource struct {
	ctx      context.Context
	schema   *Schema
	audience string
}

// TokenSource adapts a Schema to oauth2. Each Token call mints a new token.
func TokenSource(ctx context.Context, schema *Schema, audience string) oauth2.TokenSource {
	return &schemaTokenSource{ctx: ctx, schema: schema, audience: audience}
}

func (ts *schemaTokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.schema.Token(ts.ctx, ts.audience)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
