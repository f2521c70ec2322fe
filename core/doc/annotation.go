package doc

// AnnotationKind classifies a change-tracking or comment annotation.
type AnnotationKind string

// Annotation kinds. KindRangeStart and KindRangeEnd are raw identifier
// markers produced by the inline pass; the range resolver pairs them into
// KindRange wrappers. KindMarked is the critic "commented region" marker,
// distinct from the Highlight format inline.
const (
	KindAddition     AnnotationKind = "addition"
	KindDeletion     AnnotationKind = "deletion"
	KindSubstitution AnnotationKind = "substitution"
	KindMarked       AnnotationKind = "marked"
	KindComment      AnnotationKind = "comment"
	KindRangeStart   AnnotationKind = "range-start"
	KindRangeEnd     AnnotationKind = "range-end"
	KindRange        AnnotationKind = "range"
	KindIndicator    AnnotationKind = "indicator"
)

// validAnnotationKinds is the set of recognized annotation kinds.
var validAnnotationKinds = map[AnnotationKind]bool{
	KindAddition:     true,
	KindDeletion:     true,
	KindSubstitution: true,
	KindMarked:       true,
	KindComment:      true,
	KindRangeStart:   true,
	KindRangeEnd:     true,
	KindRange:        true,
	KindIndicator:    true,
}

// IsValid returns true if the annotation kind is recognized.
func (k AnnotationKind) IsValid() bool {
	return validAnnotationKinds[k]
}

// Annotation is a change-tracking or comment node. Which fields are
// meaningful depends on Kind:
//
//   - KindAddition, KindDeletion, KindMarked: Inlines is the annotated
//     content. Comment carries associated comment text once the resolver
//     has attached one.
//   - KindSubstitution: Old and New hold the replaced and replacement
//     content; Inlines is unused.
//   - KindComment: ID (optional), Author, Timestamp, and Comment hold the
//     comment body. A comment with an ID pairs with the RangeStart/RangeEnd
//     markers of the same id.
//   - KindRangeStart, KindRangeEnd: ID identifies the marker pair. Pairing
//     is by identifier, not tree nesting, because ranges may overlap.
//   - KindRange: resolver output. ID, Comment, and Inlines describe an
//     explicit anchored range carrying its comment text.
//   - KindIndicator: resolver output for a standalone comment; Comment
//     holds the text.
type Annotation struct {
	Kind AnnotationKind

	// ID identifies comment/range pairs. Empty for unidentified comments.
	ID string

	// Author and Timestamp attribute the annotation, when known.
	Author    string
	Timestamp string

	// Comment is the attached comment text.
	Comment string

	// Inlines is the annotated content.
	Inlines []Inline

	// Old and New are the substitution halves (KindSubstitution only).
	Old []Inline
	New []Inline
}
