package engine

import (
	"strconv"
	"strings"

	"github.com/prn-tf/deltaglider/internal/store"
)

// Kind tells how a stored object's body relates to its logical bytes.
type Kind string

const (
	// KindReference is the full base object of a group.
	KindReference Kind = "reference"

	// KindDelta is a binary diff against a named reference.
	KindDelta Kind = "delta"

	// KindDirect stores the logical bytes verbatim.
	KindDirect Kind = "direct"
)

// Stored user-metadata keys. This vocabulary travels with every object;
// everything needed to reconstruct an object lives here and in the
// referenced reference body.
const (
	metaKind             = "dg-kind"
	metaToolVersion      = "dg-tool-version"
	metaSHA256           = "dg-sha256"
	metaSize             = "dg-size"
	metaRefKey           = "dg-ref-key"
	metaRefSHA256        = "dg-ref-sha256"
	metaDeltaSize        = "dg-delta-size"
	metaCompressionRatio = "dg-compression-ratio"
	metaGroupID          = "dg-group-id"

	metaPrefix = "dg-"
)

// Response metadata namespace: the stable external contract surfaced
// inside standard S3 Metadata.
const (
	respIsDelta          = "deltaglider-is-delta"
	respOriginalSize     = "deltaglider-original-size"
	respCompressionRatio = "deltaglider-compression-ratio"
	respRefKey           = "deltaglider-ref-key"
	respSHA256           = "deltaglider-sha256"
	respToolVersion      = "deltaglider-tool-version"

	respPrefix = "deltaglider-"
)

// ObjectMeta is the decoded dg- metadata of a stored object.
type ObjectMeta struct {
	Kind        Kind
	ToolVersion string

	// SHA256 and Size describe the original logical bytes for all kinds.
	SHA256 string
	Size   int64

	// Delta-only fields.
	RefKey    string
	RefSHA256 string
	DeltaSize int64
	Ratio     float64

	// Reference-only field.
	GroupID string
}

// encode renders the metadata map stored with the object.
func (m ObjectMeta) encode() map[string]string {
	out := map[string]string{
		metaKind:        string(m.Kind),
		metaToolVersion: m.ToolVersion,
		metaSHA256:      m.SHA256,
		metaSize:        strconv.FormatInt(m.Size, 10),
	}
	switch m.Kind {
	case KindDelta:
		out[metaRefKey] = m.RefKey
		out[metaRefSHA256] = m.RefSHA256
		out[metaDeltaSize] = strconv.FormatInt(m.DeltaSize, 10)
		out[metaCompressionRatio] = strconv.FormatFloat(m.Ratio, 'f', 6, 64)
	case KindReference:
		out[metaGroupID] = m.GroupID
	}
	return out
}

// decodeMeta reads the dg- vocabulary from a stored object. Objects
// written by other tools carry no dg-kind and are treated as direct,
// sized by their physical length.
func decodeMeta(info *store.ObjectInfo) ObjectMeta {
	md := info.Metadata
	m := ObjectMeta{
		Kind:        Kind(md[metaKind]),
		ToolVersion: md[metaToolVersion],
		SHA256:      md[metaSHA256],
		RefKey:      md[metaRefKey],
		RefSHA256:   md[metaRefSHA256],
		GroupID:     md[metaGroupID],
	}
	m.Size, _ = strconv.ParseInt(md[metaSize], 10, 64)
	m.DeltaSize, _ = strconv.ParseInt(md[metaDeltaSize], 10, 64)
	m.Ratio, _ = strconv.ParseFloat(md[metaCompressionRatio], 64)

	if m.Kind == "" {
		m.Kind = KindDirect
		m.Size = info.Size
	}
	return m
}

// shape builds the caller-visible Metadata mapping: the user's own
// metadata plus the deltaglider- namespace. A reader unaware of
// DeltaGlider sees a fully conformant S3 response.
func (m ObjectMeta) shape(user map[string]string) map[string]string {
	out := make(map[string]string, len(user)+6)
	for k, v := range user {
		if strings.HasPrefix(k, metaPrefix) {
			continue
		}
		out[k] = v
	}

	isDelta := "false"
	if m.Kind == KindDelta {
		isDelta = "true"
	}
	out[respIsDelta] = isDelta
	out[respOriginalSize] = strconv.FormatInt(m.Size, 10)
	if m.SHA256 != "" {
		out[respSHA256] = m.SHA256
	}
	if m.ToolVersion != "" {
		out[respToolVersion] = m.ToolVersion
	}
	if m.Kind == KindDelta {
		out[respCompressionRatio] = strconv.FormatFloat(m.Ratio, 'f', 6, 64)
		out[respRefKey] = m.RefKey
	}
	return out
}

// userMetadata filters caller-supplied metadata, dropping keys that
// would collide with the stored dg- vocabulary or the deltaglider-
// response namespace.
func userMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		k = strings.ToLower(k)
		if strings.HasPrefix(k, metaPrefix) || strings.HasPrefix(k, respPrefix) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
