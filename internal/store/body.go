// ABOUTME: Tagged unions for HTTP request bodies and authentication payloads
// ABOUTME: Known fields are typed; unrecognized keys round-trip through Extra

package store

import (
	"encoding/json"
	"fmt"
)

// Body types recognized on HTTPRequest.BodyType.
const (
	BodyTypeJSON      = "application/json"
	BodyTypeXML       = "text/xml"
	BodyTypeText      = "text/plain"
	BodyTypeGraphQL   = "graphql"
	BodyTypeForm      = "application/x-www-form-urlencoded"
	BodyTypeMultipart = "multipart/form-data"
	BodyTypeBinary    = "binary"
)

// Authentication types recognized on HTTPRequest.AuthenticationType.
const (
	AuthTypeBasic  = "basic"
	AuthTypeBearer = "bearer"
)

// FormField is one entry of a urlencoded or multipart body.
type FormField struct {
	Enabled     bool   `json:"enabled"`
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	File        string `json:"file,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Body is the payload of an HTTP request. Which fields apply is decided by
// the request's BodyType: Text for raw and GraphQL bodies, Form for
// urlencoded and multipart, FilePath for binary. FilePath points at a user
// file and is never removed by the store.
type Body struct {
	Text     string
	Form     []FormField
	FilePath string
	Extra    map[string]json.RawMessage
}

var bodyKnownKeys = []string{"text", "form", "filePath"}

// MarshalJSON implements json.Marshaler.
func (b Body) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Extra)+3)
	for k, v := range b.Extra {
		out[k] = v
	}
	if b.Text != "" {
		out["text"] = b.Text
	}
	if len(b.Form) > 0 {
		out["form"] = b.Form
	}
	if b.FilePath != "" {
		out["filePath"] = b.FilePath
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Body) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	*b = Body{}
	if err := takeField(fields, "text", &b.Text); err != nil {
		return err
	}
	if err := takeField(fields, "form", &b.Form); err != nil {
		return err
	}
	if err := takeField(fields, "filePath", &b.FilePath); err != nil {
		return err
	}
	b.Extra = leftover(fields, bodyKnownKeys)
	return nil
}

// Authentication holds credentials for a request. Username and Password
// apply to basic auth, Token to bearer auth.
type Authentication struct {
	Username string
	Password string
	Token    string
	Extra    map[string]json.RawMessage
}

var authKnownKeys = []string{"username", "password", "token"}

// MarshalJSON implements json.Marshaler.
func (a Authentication) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+3)
	for k, v := range a.Extra {
		out[k] = v
	}
	if a.Username != "" {
		out["username"] = a.Username
	}
	if a.Password != "" {
		out["password"] = a.Password
	}
	if a.Token != "" {
		out["token"] = a.Token
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Authentication) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return fmt.Errorf("decoding authentication: %w", err)
	}
	*a = Authentication{}
	if err := takeField(fields, "username", &a.Username); err != nil {
		return err
	}
	if err := takeField(fields, "password", &a.Password); err != nil {
		return err
	}
	if err := takeField(fields, "token", &a.Token); err != nil {
		return err
	}
	a.Extra = leftover(fields, authKnownKeys)
	return nil
}

func splitObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func takeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

func leftover(fields map[string]json.RawMessage, known []string) map[string]json.RawMessage {
	for _, k := range known {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
