package action

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"sner-console/internal/notify"
)

type fakeForms struct {
	form *Form
	err  error
	urls []string
}

func (f *fakeForms) FetchForm(_ context.Context, u string) (*Form, error) {
	f.urls = append(f.urls, u)
	if f.err != nil {
		return nil, f.err
	}
	return f.form, nil
}

type fakeAnnotateEditor struct {
	values url.Values
	ok     bool
}

func (e *fakeAnnotateEditor) EditForm(_ context.Context, _ string, form *Form) (url.Values, bool, error) {
	v := form.Values()
	for k, x := range e.values {
		v[k] = x
	}
	return v, e.ok, nil
}

type countingReloader struct{ n int }

func (r *countingReloader) Reload(context.Context) error {
	r.n++
	return nil
}

func TestSurface_TagViewReloads(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	rl := &countingReloader{}
	s := NewSurface(NewDispatcher(sub, nil, WithReloader(rl)), nil, nil)

	fields := url.Values{"ids-0": {"12"}, "tag": {"report"}, "action": {VerbSet}}
	out, err := s.TagView(context.Background(), "/storage/vuln/tag_multiid", fields)
	if err != nil || out != OutcomeDone {
		t.Fatalf("TagView: got (%v, %v)", out, err)
	}
	if len(sub.calls) != 1 || sub.calls[0].fields.Get("ids-0") != "12" {
		t.Fatalf("calls: got %+v", sub.calls)
	}
	if rl.n != 1 {
		t.Fatalf("reloads: got %d want 1", rl.n)
	}
}

func TestSurface_AnnotateRow(t *testing.T) {
	t.Parallel()

	forms := &fakeForms{form: &Form{
		Action:    "/storage/host/annotate/3",
		Fields:    url.Values{"comment": {"old"}, "tags": {"a\nb"}, "csrf_token": {"tok"}},
		TagFields: []string{"tags"},
	}}
	sub := &fakeSubmitter{}
	modal := &fakeModal{}
	s := NewSurface(NewDispatcher(sub, nil, WithModal(modal)), forms, &fakeAnnotateEditor{values: url.Values{"comment": {"new"}}, ok: true})
	g := &fakeGrid{}

	out, err := s.AnnotateRow(context.Background(), "/storage/host/annotate/3", g)
	if err != nil || out != OutcomeDone {
		t.Fatalf("AnnotateRow: got (%v, %v)", out, err)
	}
	if len(sub.calls) != 1 || sub.calls[0].endpoint != "/storage/host/annotate/3" {
		t.Fatalf("calls: got %+v", sub.calls)
	}
	if f := sub.calls[0].fields; f.Get("comment") != "new" || f.Get("tags") != "a\nb" {
		t.Fatalf("fields: got %v", f)
	}
	if g.redraws != 1 || modal.closed != 1 {
		t.Fatalf("redraws %d, modal closed %d", g.redraws, modal.closed)
	}
}

func TestSurface_AnnotateFailureClosesModal(t *testing.T) {
	t.Parallel()

	forms := &fakeForms{form: &Form{Action: "/a"}}
	sub := &fakeSubmitter{err: errors.New("boom")}
	modal := &fakeModal{}
	rl := &countingReloader{}
	s := NewSurface(NewDispatcher(sub, nil, WithModal(modal), WithReloader(rl)), forms, &fakeAnnotateEditor{ok: true})

	out, _ := s.AnnotateView(context.Background(), "/a")
	if out != OutcomeFailed {
		t.Fatalf("outcome: got %v", out)
	}
	if modal.closed != 1 || rl.n != 0 {
		t.Fatalf("modal closed %d, reloads %d", modal.closed, rl.n)
	}
}

func TestSurface_FetchAnnotationError(t *testing.T) {
	t.Parallel()

	rec := &notify.Recorder{}
	s := NewSurface(NewDispatcher(&fakeSubmitter{}, rec), &fakeForms{err: userMsgErr{msg: "not found"}}, &fakeAnnotateEditor{})
	if _, err := s.AnnotateView(context.Background(), "/x"); err == nil {
		t.Fatalf("expected error")
	}
	if notes := rec.Drain(); len(notes) != 1 || notes[0].Text != "not found" {
		t.Fatalf("notes: got %+v", notes)
	}
}

func TestJoinTags(t *testing.T) {
	t.Parallel()

	if got := JoinTags([]string{" a", "", "b "}); got != "a\nb" {
		t.Fatalf("JoinTags: got %q", got)
	}
}
