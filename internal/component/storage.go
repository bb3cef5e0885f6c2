package component

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"sner-console/internal/routes"
)

// Storage renders hosts, services, vulns and notes.
type Storage struct{}

func (Storage) Name() string { return "storage" }

func (Storage) Declare() Declarations {
	return Declarations{
		Partials: []string{
			"storage.host_view_route",
			"storage.host_edit_route",
			"storage.host_delete_route",
			"storage.service_add_route",
			"storage.service_edit_route",
			"storage.service_delete_route",
			"storage.vuln_add_route",
			"storage.vuln_view_route",
			"storage.vuln_edit_route",
			"storage.vuln_multicopy_route",
			"storage.vuln_delete_route",
			"storage.note_add_route",
			"storage.note_view_route",
			"storage.note_edit_route",
			"storage.note_delete_route",
		},
		Helpers: template.FuncMap{
			"url_for_ref":                    URLForRef,
			"text_for_ref":                   TextForRef,
			"color_for_severity":             ColorForSeverity,
			"color_for_tag":                  ColorForTag,
			"each_sorted":                    EachSorted,
			"links_for_service":              LinksForService,
			"vuln_list_route_filter_name":    VulnListFilterName,
			"service_list_route_filter_info": ServiceListFilterInfo,
		},
		Templates: map[string]string{
			"tag_labels":     `{{range each_sorted .tags}}{{badge (color_for_tag .) .}} {{end}}`,
			"severity_label": `{{badge (color_for_severity .severity) .severity}}`,
			"vuln_refs":      `{{range .refs}}{{text_for_ref .}} {{end}}`,
			"vuln_ref_links": `{{range .refs}}- [{{text_for_ref .}}]({{url_for_ref .}})
{{end}}`,
			"host_link": `[{{.host_address}}]({{template "storage.host_view_route" (dict "host_id" .host_id)}})`,
			"vuln_link": `[{{.name}}]({{template "storage.vuln_view_route" (dict "vuln_id" .id)}})`,
			"service_list_filter_info_link": `[{{if .info}}{{.info}}{{else}}_null_ ⚠{{end}}]({{service_list_route_filter_info .info}})`,
			"vuln_list_filter_name_link":    `[{{.name}}]({{vuln_list_route_filter_name .name}})`,
			"service_endpoint_links": `{{range links_for_service .host_address .host_hostname .proto .port}}- {{.}}
{{end}}`,
			"host_detail": `## [{{.address}}]({{template "storage.host_view_route" (dict "host_id" .id)}})

| field | value |
|-------|-------|
| hostname | {{.hostname | default ""}} |
| os | {{.os | default ""}} |
| services / vulns / notes | {{.cnt_s | default 0}} / {{.cnt_v | default 0}} / {{.cnt_n | default 0}} |
| tags | {{join ", " (each_sorted .tags)}} |

{{.comment | default ""}}
`,
			"service_detail": `## {{.host_address}} {{.proto}}/{{.port}}

| field | value |
|-------|-------|
| name | {{.name | default ""}} |
| state | {{.state | default ""}} |
| info | {{template "service_list_filter_info_link" .}} |
| tags | {{join ", " (each_sorted .tags)}} |

Endpoint URIs:

{{range links_for_service .host_address .host_hostname .proto .port}}- {{.}}
{{end}}
{{.comment | default ""}}
`,
			"vuln_detail": `## {{template "vuln_list_filter_name_link" .}}

| field | value |
|-------|-------|
| host | {{.host_address}} {{.service | default ""}} |
| via target | {{.via_target | default ""}} |
| severity | {{.severity}} |
| xtype | {{.xtype | default ""}} |
| tags | {{join ", " (each_sorted .tags)}} |

References:

{{template "vuln_ref_links" .}}
{{.comment | default ""}}
`,
			"host_controls": `link|+S|{{template "storage.service_add_route" (dict "host_id" .id)}}
link|+V|{{template "storage.vuln_add_route" (dict "model_name" "host" "model_id" .id)}}
link|+N|{{template "storage.note_add_route" (dict "model_name" "host" "model_id" .id)}}
link|Edit|{{template "storage.host_edit_route" (dict "host_id" .id)}}
delete|Delete|{{template "storage.host_delete_route" (dict "host_id" .id)}}`,
			"service_controls": `link|+V|{{template "storage.vuln_add_route" (dict "model_name" "service" "model_id" .id)}}
link|+N|{{template "storage.note_add_route" (dict "model_name" "service" "model_id" .id)}}
link|Edit|{{template "storage.service_edit_route" (dict "service_id" .id)}}
delete|Delete|{{template "storage.service_delete_route" (dict "service_id" .id)}}`,
			"vuln_controls": `link|Edit|{{template "storage.vuln_edit_route" (dict "vuln_id" .id)}}
link|Multicopy|{{template "storage.vuln_multicopy_route" (dict "vuln_id" .id)}}
delete|Delete|{{template "storage.vuln_delete_route" (dict "vuln_id" .id)}}`,
			"note_controls": `link|View|{{template "storage.note_view_route" (dict "note_id" .id)}}
link|Edit|{{template "storage.note_edit_route" (dict "note_id" .id)}}
delete|Delete|{{template "storage.note_delete_route" (dict "note_id" .id)}}`,
		},
	}
}

var refURL = map[string]func(string) string{
	"URL":  func(d string) string { return d },
	"CVE":  func(d string) string { return "https://cvedetails.com/cve/CVE-" + d },
	"NSS":  func(d string) string { return "https://www.tenable.com/plugins/nessus/" + d },
	"BID":  func(d string) string { return "https://www.securityfocus.com/bid/" + d },
	"CERT": func(d string) string { return "https://www.kb.cert.org/vuls/id/" + d },
	"EDB":  func(d string) string { return "https://www.exploit-db.com/exploits/" + strings.Replace(d, "ID-", "", 1) },
	"MSF":  func(d string) string { return "https://www.rapid7.com/db/?q=" + d },
	"MSFT": func(d string) string { return "https://technet.microsoft.com/en-us/security/bulletin/" + d },
	"MSKB": func(d string) string { return "https://support.microsoft.com/en-us/help/" + d },
	"SN": func(d string) string {
		u, err := routes.Console.URLFor("storage.note_view_route", map[string]string{"note_id": d})
		if err != nil {
			return "#"
		}
		return u
	},
}

// URLForRef maps a vuln reference ("CVE-2021-1234", "URL-https://...")
// to a link; unknown schemes yield "#".
func URLForRef(ref any) string {
	s := toString(ref)
	prefix, rest, ok := strings.Cut(s, "-")
	if !ok {
		return "#"
	}
	gen, ok := refURL[prefix]
	if !ok {
		return "#"
	}
	return gen(rest)
}

// TextForRef shortens URL and MSF references to their scheme.
func TextForRef(ref any) string {
	s := toString(ref)
	switch {
	case strings.HasPrefix(s, "URL-"):
		return "URL"
	case strings.HasPrefix(s, "MSF-"):
		return "MSF"
	}
	return s
}

var severityClass = map[string]string{
	"unknown":  ClassSecondary,
	"info":     ClassLight,
	"low":      ClassInfo,
	"medium":   ClassPrimary,
	"high":     ClassWarning,
	"critical": ClassDanger,
}

func ColorForSeverity(severity any) string {
	if c, ok := severityClass[toString(severity)]; ok {
		return c
	}
	return ClassSecondary
}

var tagClass = map[string]string{
	"todo":        ClassWarning,
	"report":      ClassDanger,
	"report:data": ClassDanger,
}

func ColorForTag(tag any) string {
	if c, ok := tagClass[toString(tag)]; ok {
		return c
	}
	return ClassSecondary
}

// EachSorted returns the items of a flat list as sorted strings.
func EachSorted(items any) []string {
	var out []string
	switch v := items.(type) {
	case nil:
		return nil
	case []string:
		out = append(out, v...)
	case []any:
		for _, x := range v {
			out = append(out, toString(x))
		}
	default:
		out = []string{toString(v)}
	}
	sort.Strings(out)
	return out
}

// LinksForService lists the endpoint URIs of a service: proto URIs for the
// address and hostname, plus http/https variants for tcp.
func LinksForService(address, hostname, proto, port any) []string {
	if proto == nil || port == nil {
		return nil
	}
	addr, pr, po := toString(address), toString(proto), toString(port)
	hasHost := hostname != nil && toString(hostname) != ""
	host := toString(hostname)

	urls := []string{pr + "://" + addr + ":" + po}
	if hasHost {
		urls = append(urls, pr+"://"+host+":"+po)
	}
	if pr == "tcp" {
		urls = append(urls, "http://"+addr+":"+po, "https://"+addr+":"+po)
		if hasHost {
			urls = append(urls, "http://"+host+":"+po, "https://"+host+":"+po)
		}
	}
	return urls
}

// VulnListFilterName links the vuln list filtered to an exact vuln name.
func VulnListFilterName(name any) string {
	return filterURL("storage.vuln_list_route", "Vuln.name=="+EncodeRFC3986(jsonString(toString(name))))
}

// ServiceListFilterInfo links the service list filtered by info prefix
// (ILIKE, backslashes escaped), or to services without info.
func ServiceListFilterInfo(info any) string {
	if info == nil {
		return filterURL("storage.service_list_route", "Service.info%20is_null%20%22%22")
	}
	pattern := strings.ReplaceAll(toString(info), `\`, `\\`) + "%"
	return filterURL("storage.service_list_route", "Service.info%20ilike%20"+EncodeRFC3986(jsonString(pattern)))
}

// filterURL appends an already encoded filter to the route's path.
func filterURL(route, encodedFilter string) string {
	path, err := routes.Console.URLFor(route, nil)
	if err != nil {
		return "#"
	}
	return path + "?filter=" + encodedFilter
}

// EncodeRFC3986 percent-encodes everything but the RFC 3986 unreserved characters.
func EncodeRFC3986(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xF])
	}
	return b.String()
}

func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
