// Package action implements the bulk-action request/refresh protocol:
// validate the selection, confirm, submit, refresh and report.
package action

import (
	"net/url"
	"strings"
)

const (
	VerbSet   = "set"
	VerbUnset = "unset"
)

// DefaultConfirmation is asked by single-id submit controls that name none.
const DefaultConfirmation = "Are you sure?"

// DeleteConfirmation is asked before every delete.
const DeleteConfirmation = "Really delete?"

type SuccessBehavior int

const (
	// Redraw re-fetches the grid's current page.
	Redraw SuccessBehavior = iota
	// RedrawAfterClose closes the open modal first.
	RedrawAfterClose
	// Reload reloads the current document (detail views have no grid).
	Reload
	ReloadAfterClose
)

func (b SuccessBehavior) closesModal() bool {
	return b == RedrawAfterClose || b == ReloadAfterClose
}

func (b SuccessBehavior) reloads() bool {
	return b == Reload || b == ReloadAfterClose
}

type Scope int

const (
	// ScopeSelection sends the grid's exported selection; an empty one is refused.
	ScopeSelection Scope = iota
	// ScopeImplicit sends only the payload (the id is part of the endpoint or payload).
	ScopeImplicit
)

// Descriptor describes one bulk or single-entity action. Build it once per
// control and treat it as immutable.
type Descriptor struct {
	Name     string
	Endpoint string
	// Payload holds fixed extra fields, e.g. tag and action.
	Payload      url.Values
	Confirmation string
	Success      SuccessBehavior
	Scope        Scope
	// Always redraws the grid after the request whatever its outcome.
	Always bool
	// Removes marks actions that delete their entities; on success the
	// submitted ids (and Subject) leave the grid's selection.
	Removes bool
	// Subject is the entity id of a single-id action.
	Subject string
}

func (d Descriptor) payload() url.Values {
	v := url.Values{}
	for k, vals := range d.Payload {
		v[k] = append([]string(nil), vals...)
	}
	return v
}

// Tag sets (or with VerbUnset removes) a fixed tag on the selected items.
func Tag(endpoint, tag, verb string) Descriptor {
	if verb != VerbUnset {
		verb = VerbSet
	}
	return Descriptor{
		Name:     verb + " tag " + tag,
		Endpoint: endpoint,
		Payload:  url.Values{"tag": {tag}, "action": {verb}},
		Success:  Redraw,
	}
}

// Delete removes the selected items after confirmation.
func Delete(endpoint string) Descriptor {
	return Descriptor{
		Name:         "delete",
		Endpoint:     endpoint,
		Confirmation: DeleteConfirmation,
		Success:      Redraw,
		Removes:      true,
	}
}

// DataURL is a single-id control submitting to an entity url (row delete,
// queue flush/prune). The grid is redrawn whatever the outcome.
func DataURL(endpoint, confirmation string) Descriptor {
	if strings.TrimSpace(confirmation) == "" {
		confirmation = DefaultConfirmation
	}
	return Descriptor{
		Name:         "submit " + endpoint,
		Endpoint:     endpoint,
		Confirmation: confirmation,
		Success:      Redraw,
		Scope:        ScopeImplicit,
		Always:       true,
	}
}

// DeleteRow is the delete control of one row; id leaves the selection on success.
func DeleteRow(endpoint, confirmation, id string) Descriptor {
	d := DataURL(endpoint, confirmation)
	d.Name = "delete " + id
	d.Removes = true
	d.Subject = id
	return d
}

// FreeTagTitle is the tag editor title for verb.
func FreeTagTitle(verb string) string {
	if verb == VerbSet {
		return "Tag multiple items"
	}
	return "Untag multiple items"
}

// JoinTags encodes editor tags the way the tag endpoints split them.
func JoinTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
