package dbmsg

import (
	"unicode/utf16"

	"github.com/snapetech/prolink-impersonator/internal/wire/field"
)

// Category-code constants for the fixed root menu (spec.md §4.8) and for the
// per-row `kind` field of drill-down menu items.
const (
	KindRootArtist   uint32 = 0x81
	KindRootAlbum    uint32 = 0x82
	KindRootTrack    uint32 = 0x83
	KindRootKey      uint32 = 0x8b
	KindRootPlaylist uint32 = 0x84
	KindRootHistory  uint32 = 0x95
	KindRootSearch   uint32 = 0x91
	KindRootFolder   uint32 = 0x90

	KindArtist uint32 = 0x02
	KindAlbum  uint32 = 0x03
	KindTitle  uint32 = 0x04
)

// sentinelOpen and sentinelClose are the U+FFFA/U+FFFB code points rekordbox
// wraps root-menu labels in.
const (
	sentinelOpen  = '￺'
	sentinelClose = '￻'
)

func wrapSentinel(label string) string {
	return string(sentinelOpen) + label + string(sentinelClose)
}

// MenuItem is the decoded form of the 12-Field tuple spec.md §3 defines:
// (parent_id1, parent_id2, label_len, label_text, sublabel_len, sublabel_text,
// kind, 0, child_id1, 0, child_id2, 0).
type MenuItem struct {
	ParentID1 uint32
	ParentID2 uint32
	Label     string
	Sublabel  string
	Kind      uint32
	ChildID1  uint32
	ChildID2  uint32
}

// stringByteLen returns the on-wire byte length of a String field's payload
// (UTF-16BE code units plus the two trailing NUL bytes) — the value the
// protocol stores in a MenuItem's label_len/sublabel_len slots.
func stringByteLen(s string) uint32 {
	units := utf16.Encode([]rune(s))
	return uint32(2*len(units) + 2)
}

// Fields renders the MenuItem as its 12-Field argument tuple.
func (m MenuItem) Fields() []field.Field {
	return []field.Field{
		field.NewU32(m.ParentID1),
		field.NewU32(m.ParentID2),
		field.NewU32(stringByteLen(m.Label)),
		field.NewString(m.Label),
		field.NewU32(stringByteLen(m.Sublabel)),
		field.NewString(m.Sublabel),
		field.NewU32(m.Kind),
		field.NewU32(0),
		field.NewU32(m.ChildID1),
		field.NewU32(0),
		field.NewU32(m.ChildID2),
		field.NewU32(0),
	}
}

// MenuHeader builds the `MenuHeader` frame that opens a menu response. The
// first argument carries the row count; the second is always 0.
func MenuHeader(transactionID uint32, rowCount int) Frame {
	return NewResponse(transactionID, RespMenuHeader, []field.Field{
		field.NewU32(uint32(rowCount)),
		field.NewU32(0),
	})
}

// MenuItemFrame builds one `MenuItem` row frame.
func MenuItemFrame(transactionID uint32, item MenuItem) Frame {
	return NewResponse(transactionID, RespMenuItem, item.Fields())
}

// MenuFooter builds the `MenuFooter` frame that closes a menu response; it
// carries no arguments.
func MenuFooter(transactionID uint32) Frame {
	return NewResponse(transactionID, RespMenuFooter, nil)
}

// Menu renders a complete MenuHeader, MenuItem×N, MenuFooter sequence as
// concatenated wire bytes, sharing transactionID across all N+2 frames.
func Menu(transactionID uint32, items []MenuItem) []byte {
	buf := MenuHeader(transactionID, len(items)).Encode()
	for _, it := range items {
		buf = append(buf, MenuItemFrame(transactionID, it).Encode()...)
	}
	buf = append(buf, MenuFooter(transactionID).Encode()...)
	return buf
}

// RootMenuItems returns the 8 fixed root-menu rows in the order spec.md
// §4.8 names them, with sentinel-wrapped labels.
func RootMenuItems() []MenuItem {
	rows := []struct {
		label string
		kind  uint32
	}{
		{"ARTIST", KindRootArtist},
		{"ALBUM", KindRootAlbum},
		{"TRACK", KindRootTrack},
		{"KEY", KindRootKey},
		{"PLAYLIST", KindRootPlaylist},
		{"HISTORY", KindRootHistory},
		{"SEARCH", KindRootSearch},
		{"FOLDER", KindRootFolder},
	}
	items := make([]MenuItem, len(rows))
	for i, r := range rows {
		items[i] = MenuItem{Label: wrapSentinel(r.label), Kind: r.kind}
	}
	return items
}
