// validate.go -- Request body decoding and field validation.
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	netmail "net/mail"
	"strings"
	"unicode/utf8"

	"github.com/MGallo-Code/ticklist/internal/i18n"
	"github.com/MGallo-Code/ticklist/internal/store"
)

const (
	maxBodyBytes      = 1 << 20
	maxNameLen        = 255
	maxEmailLen       = 255
	minPasswordLen    = 8
	maxPasswordBytes  = 128 // Argon2id DoS guard
	maxTitleLen       = 255
	maxDescriptionLen = 1000
)

// fieldErrors collects validation messages per field, in insertion order per field.
type fieldErrors map[string][]string

func (fe fieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe fieldErrors) err() *Error {
	if len(fe) == 0 {
		return nil
	}
	return errValidation(fe)
}

// decodeFields reads a JSON object body into raw per-field values.
// An empty body decodes to an empty object; anything else that isn't a JSON
// object is a validation error on "body".
func decodeFields(r *http.Request) (map[string]json.RawMessage, *Error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fieldError("body", i18n.MsgBodyInvalidJSON)
	}
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fieldError("body", i18n.MsgBodyInvalidJSON)
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// stringField returns the field as a string. present is false when the key is absent;
// ok is false when it is present but null or not a string.
func stringField(fields map[string]json.RawMessage, key string) (val string, present, ok bool) {
	raw, present := fields[key]
	if !present {
		return "", false, false
	}
	if isNull(raw) {
		return "", true, false
	}
	if err := json.Unmarshal(raw, &val); err != nil {
		return "", true, false
	}
	return val, true, true
}

// boolField accepts true/false, 0/1 and "0"/"1".
func boolField(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true", "1", `"1"`:
		return true, true
	case "false", "0", `"0"`:
		return false, true
	}
	return false, false
}

// --- Auth input ---

type registerInput struct {
	Name     string
	Email    string
	Password string
}

func validateRegister(fields map[string]json.RawMessage) (registerInput, *Error) {
	errs := fieldErrors{}
	var in registerInput

	name, _, _ := stringField(fields, "name")
	in.Name = strings.TrimSpace(name)
	switch {
	case in.Name == "":
		errs.add("name", i18n.MsgNameRequired)
	case utf8.RuneCountInString(in.Name) > maxNameLen:
		errs.add("name", i18n.MsgNameTooLong)
	}

	in.Email = validateEmail(fields, errs)

	password, _, _ := stringField(fields, "password")
	confirmation, _, _ := stringField(fields, "password_confirmation")
	switch {
	case password == "":
		errs.add("password", i18n.MsgPasswordRequired)
	case utf8.RuneCountInString(password) < minPasswordLen:
		errs.add("password", i18n.MsgPasswordTooShort)
	case len(password) > maxPasswordBytes:
		errs.add("password", i18n.MsgPasswordTooLong)
	case password != confirmation:
		errs.add("password", i18n.MsgPasswordMismatch)
	}
	in.Password = password

	return in, errs.err()
}

type loginInput struct {
	Email    string
	Password string
}

func validateLogin(fields map[string]json.RawMessage) (loginInput, *Error) {
	errs := fieldErrors{}
	var in loginInput

	in.Email = validateEmail(fields, errs)
	in.Password, _, _ = stringField(fields, "password")
	if in.Password == "" {
		errs.add("password", i18n.MsgPasswordRequired)
	}

	return in, errs.err()
}

// validateEmail normalizes the email field to lower case and records any problem in errs.
func validateEmail(fields map[string]json.RawMessage, errs fieldErrors) string {
	raw, _, _ := stringField(fields, "email")
	email := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case email == "":
		errs.add("email", i18n.MsgEmailRequired)
	case len(email) > maxEmailLen:
		errs.add("email", i18n.MsgEmailTooLong)
	case !validEmail(email):
		errs.add("email", i18n.MsgEmailInvalid)
	}
	return email
}

// validEmail accepts a bare addr-spec with a dotted domain. Display-name forms
// ("Bob <bob@x.com>") parse under net/mail but are rejected here.
func validEmail(email string) bool {
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// --- Todo input ---

// todoInput is a validated create body.
type todoInput struct {
	Title       string
	Description *string
	Completed   bool
}

func validateTodoCreate(fields map[string]json.RawMessage) (todoInput, *Error) {
	errs := fieldErrors{}
	var in todoInput

	in.Title = checkTitle(errs, fields)

	desc, cleared, derr := descriptionField(fields)
	if derr != "" {
		errs.add("description", derr)
	} else if !cleared {
		in.Description = desc
	}

	if raw, ok := fields["completed"]; ok {
		v, valid := boolField(raw)
		if !valid {
			errs.add("completed", i18n.MsgCompletedNotBool)
		}
		in.Completed = v
	}

	return in, errs.err()
}

// validateTodoPatch builds a partial update. Absent keys stay untouched;
// "description": null clears the column.
func validateTodoPatch(fields map[string]json.RawMessage) (store.TodoPatch, *Error) {
	errs := fieldErrors{}
	var patch store.TodoPatch

	if _, ok := fields["title"]; ok {
		t := checkTitle(errs, fields)
		patch.Title = &t
	}

	if _, ok := fields["description"]; ok {
		desc, cleared, derr := descriptionField(fields)
		switch {
		case derr != "":
			errs.add("description", derr)
		case cleared:
			patch.ClearDescription = true
		default:
			patch.Description = desc
		}
	}

	if raw, ok := fields["completed"]; ok {
		v, valid := boolField(raw)
		if !valid {
			errs.add("completed", i18n.MsgCompletedNotBool)
		}
		patch.Completed = &v
	}

	return patch, errs.err()
}

// checkTitle validates a title that must be present, a string, and non-blank.
func checkTitle(errs fieldErrors, fields map[string]json.RawMessage) string {
	raw, present := fields["title"]
	if !present || isNull(raw) {
		errs.add("title", i18n.MsgTitleRequired)
		return ""
	}
	var title string
	if err := json.Unmarshal(raw, &title); err != nil {
		errs.add("title", i18n.MsgTitleNotString)
		return ""
	}
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		errs.add("title", i18n.MsgTitleRequired)
	case utf8.RuneCountInString(title) > maxTitleLen:
		errs.add("title", i18n.MsgTitleTooLong)
	}
	return title
}

// descriptionField reads an optional, nullable description.
// cleared is true for an explicit null or empty string; msg is non-empty on a validation failure.
func descriptionField(fields map[string]json.RawMessage) (desc *string, cleared bool, msg string) {
	raw, ok := fields["description"]
	if !ok {
		return nil, false, ""
	}
	if isNull(raw) {
		return nil, true, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, i18n.MsgDescNotString
	}
	if s == "" {
		return nil, true, ""
	}
	if utf8.RuneCountInString(s) > maxDescriptionLen {
		return nil, false, i18n.MsgDescTooLong
	}
	return &s, false, ""
}
