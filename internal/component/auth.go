package component

import (
	"strings"
	"text/template"
	"unicode/utf8"
)

// Auth renders users and webauthn credentials.
type Auth struct{}

func (Auth) Name() string { return "auth" }

func (Auth) Declare() Declarations {
	return Declarations{
		Partials: []string{
			"auth.user_edit_route",
			"auth.user_delete_route",
			"auth.user_apikey_route",
			"auth.profile_webauthn_edit_route",
			"auth.profile_webauthn_delete_route",
		},
		Helpers: template.FuncMap{
			"capitalize": Capitalize,
		},
		Templates: map[string]string{
			"user_controls": `link|Edit|{{template "auth.user_edit_route" (dict "user_id" .id)}}
delete|Delete|{{template "auth.user_delete_route" (dict "user_id" .id)}}`,
			"user_apikey_controls": `{{.apikey}} {{capitalize .action}}`,
			"user_apikey_url":      `{{template "auth.user_apikey_route" (dict "user_id" .user_id "action" .action)}}`,
			"profile_webauthn_controls": `link|Edit|{{template "auth.profile_webauthn_edit_route" (dict "webauthn_id" .id)}}
delete|Delete|{{template "auth.profile_webauthn_delete_route" (dict "webauthn_id" .id)}}`,
		},
	}
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(v any) string {
	s := toString(v)
	if s == "" {
		return ""
	}
	r, n := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + strings.ToLower(s[n:])
}
