package domain

// Field names an item attribute that a write may preserve.
type Field string

const (
	FieldSummary       Field = "summary"
	FieldExtractedText Field = "extracted_text"
	FieldPublishStatus Field = "publish_status"
	FieldResolvedURL   Field = "resolved_url"
	FieldSourceClass   Field = "source_class"
	FieldByline        Field = "byline"
	FieldDescription   Field = "description"
)

// FieldSet is the set of fields a merge write must keep when already populated.
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Has reports membership; a nil set contains nothing.
func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// With returns a copy of s extended by fields.
func (s FieldSet) With(fields ...Field) FieldSet {
	out := make(FieldSet, len(s)+len(fields))
	for f := range s {
		out[f] = struct{}{}
	}
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// WriteOnce is the preserve set every pipeline write carries.
func WriteOnce() FieldSet {
	return NewFieldSet(FieldSummary, FieldExtractedText, FieldPublishStatus)
}

// Merge folds incoming into existing field by field.
//
// Fields in preserve keep the stored value when it is populated; everything
// else is taken from incoming. For publish_status only the published value
// is considered populated: failed and skipped are retry bookkeeping. The
// stage never moves backwards and a terminal stage is final, regardless of
// preserve. Identity and creation time always come from existing.
func Merge(existing, incoming Item, preserve FieldSet) Item {
	out := incoming
	out.ID = existing.ID
	if !existing.CreatedAt.IsZero() {
		out.CreatedAt = existing.CreatedAt
	}

	if preserve.Has(FieldSummary) && existing.Summary != "" {
		out.Summary = existing.Summary
		out.SummaryOrigin = existing.SummaryOrigin
	}
	if preserve.Has(FieldExtractedText) && existing.ExtractedText != "" {
		out.ExtractedText = existing.ExtractedText
		out.Extractor = existing.Extractor
	}
	if preserve.Has(FieldPublishStatus) && existing.PublishStatus == PublishPublished {
		out.PublishStatus = existing.PublishStatus
		out.PublishedAtTS = existing.PublishedAtTS
		out.PostRef = existing.PostRef
	}
	if preserve.Has(FieldResolvedURL) && existing.ResolvedURL != "" {
		out.ResolvedURL = existing.ResolvedURL
	}
	if preserve.Has(FieldSourceClass) && existing.SourceClass != SourceUnclassified {
		out.SourceClass = existing.SourceClass
	}
	if preserve.Has(FieldByline) && existing.Byline != "" {
		out.Byline = existing.Byline
	}
	if preserve.Has(FieldDescription) && existing.Description != "" {
		out.Description = existing.Description
	}

	if existing.Stage.Terminal() || out.Stage.Rank() < existing.Stage.Rank() {
		out.Stage = existing.Stage
		out.StageReason = existing.StageReason
		out.StageAttempts = existing.StageAttempts
	}
	return out
}
