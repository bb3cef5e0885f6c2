package routes

import "testing"

func TestURLFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		route   string
		params  map[string]string
		want    string
		wantErr bool
	}{
		{name: "path arg", route: "storage.host_view_route", params: map[string]string{"host_id": "5"}, want: "/storage/host/view/5"},
		{name: "two args", route: "storage.note_add_route", params: map[string]string{"model_name": "host", "model_id": "3"}, want: "/storage/note/add/host/3"},
		{name: "extra params become query", route: "storage.vuln_list_route", params: map[string]string{"filter": `Vuln.name=="x y"`}, want: "/storage/vuln/list?filter=Vuln.name%3D%3D%22x+y%22"},
		{name: "missing arg", route: "storage.host_view_route", params: nil, wantErr: true},
		{name: "unknown route", route: "storage.nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Console.URLFor(tt.route, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got (%q, %v) want %q", got, err, tt.want)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	got := Console.Args("auth.user_apikey_route")
	if len(got) != 2 || got[0] != "user_id" || got[1] != "action" {
		t.Fatalf("args: got %v", got)
	}
}
