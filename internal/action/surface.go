package action

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Form is a server-rendered edit form.
type Form struct {
	Action string
	Method string
	Fields url.Values
	// TagFields name the fields edited with a tag editor (one tag per line).
	TagFields []string
}

// IsTagField reports whether name is edited with a tag editor.
func (f *Form) IsTagField(name string) bool {
	for _, n := range f.TagFields {
		if n == name {
			return true
		}
	}
	return false
}

// Values returns a copy of the form's fields.
func (f *Form) Values() url.Values {
	out := url.Values{}
	for k, v := range f.Fields {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// FormFetcher loads a server-rendered form.
type FormFetcher interface {
	FetchForm(ctx context.Context, formURL string) (*Form, error)
}

// AnnotateEditor shows an annotate form in a modal and returns the edited
// fields; ok is false when the user cancelled.
type AnnotateEditor interface {
	EditForm(ctx context.Context, title string, form *Form) (values url.Values, ok bool, err error)
}

const AnnotateTitle = "Annotate"

// Surface runs single-entity actions from rows and detail views through the
// dispatcher's submit/refresh protocol.
type Surface struct {
	d      *Dispatcher
	forms  FormFetcher
	editor AnnotateEditor
}

func NewSurface(d *Dispatcher, forms FormFetcher, editor AnnotateEditor) *Surface {
	return &Surface{d: d, forms: forms, editor: editor}
}

func (s *Surface) Dispatcher() *Dispatcher { return s.d }

// TagView tags the entity of a detail view and reloads it on success.
// fields carry the entity id along with tag and action.
func (s *Surface) TagView(ctx context.Context, endpoint string, fields url.Values) (Outcome, error) {
	desc := Descriptor{
		Name:     "tag view",
		Endpoint: endpoint,
		Payload:  fields,
		Success:  Reload,
		Scope:    ScopeImplicit,
	}
	return s.d.Dispatch(ctx, desc, nil, nil)
}

// FetchAnnotation loads the annotate form of one entity.
func (s *Surface) FetchAnnotation(ctx context.Context, formURL string) (*Form, error) {
	if s.forms == nil {
		return nil, errors.New("no form fetcher configured")
	}
	f, err := s.forms.FetchForm(ctx, formURL)
	if err != nil {
		s.d.notifier.Error(notifyMessage(err))
		return nil, fmt.Errorf("fetch annotate form: %w", err)
	}
	if strings.TrimSpace(f.Action) == "" {
		f.Action = formURL
	}
	return f, nil
}

// SubmitAnnotation posts the edited annotate form. The modal is closed
// whatever the outcome; on success g is redrawn, or the document reloaded
// when g is nil.
func (s *Surface) SubmitAnnotation(ctx context.Context, form *Form, values url.Values, g Grid) (Outcome, error) {
	desc := Descriptor{
		Name:     "annotate",
		Endpoint: form.Action,
		Success:  RedrawAfterClose,
		Scope:    ScopeImplicit,
	}
	if g == nil {
		desc.Success = ReloadAfterClose
	}
	return s.d.Dispatch(ctx, desc, g, values)
}

// AnnotateView annotates the entity of a detail view.
func (s *Surface) AnnotateView(ctx context.Context, formURL string) (Outcome, error) {
	return s.annotate(ctx, formURL, nil)
}

// AnnotateRow annotates one grid row and redraws the current page.
func (s *Surface) AnnotateRow(ctx context.Context, formURL string, g Grid) (Outcome, error) {
	return s.annotate(ctx, formURL, g)
}

func (s *Surface) annotate(ctx context.Context, formURL string, g Grid) (Outcome, error) {
	if s.editor == nil {
		return OutcomeFailed, errors.New("no annotate editor configured")
	}
	form, err := s.FetchAnnotation(ctx, formURL)
	if err != nil {
		return OutcomeFailed, err
	}
	values, ok, err := s.editor.EditForm(ctx, AnnotateTitle, form)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("annotate editor: %w", err)
	}
	if !ok {
		if s.d.modal != nil {
			s.d.modal.CloseModal()
		}
		return OutcomeDeclined, nil
	}
	return s.SubmitAnnotation(ctx, form, values, g)
}
