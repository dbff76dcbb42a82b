package dbmsg

import (
	"bytes"
	"testing"
)

func TestRootMenuItemsArtistRow(t *testing.T) {
	items := RootMenuItems()
	if len(items) != 8 {
		t.Fatalf("expected 8 root items, got %d", len(items))
	}
	artist := items[0]
	if artist.Label != "￺ARTIST￻" {
		t.Fatalf("unexpected artist label: %q", artist.Label)
	}
	if artist.Kind != KindRootArtist {
		t.Fatalf("expected kind 0x81, got 0x%02x", artist.Kind)
	}

	fields := artist.Fields()
	if len(fields) != 12 {
		t.Fatalf("expected 12 fields, got %d", len(fields))
	}
	// label_len = 2*(codeUnits)+2 where ARTIST+sentinels is 8 code units.
	if fields[2].U32 != 18 {
		t.Fatalf("expected label_len=18, got %d", fields[2].U32)
	}
	if fields[4].U32 != 2 {
		t.Fatalf("expected sublabel_len=2 (empty string), got %d", fields[4].U32)
	}
	if fields[6].U32 != KindRootArtist {
		t.Fatalf("expected kind field to equal 0x81, got 0x%02x", fields[6].U32)
	}
}

func TestMenuFrameSequenceSharesTransactionID(t *testing.T) {
	buf := Menu(0x05800002, RootMenuItems())

	decodeNext := func(b []byte) (Frame, []byte) {
		f, rest, err := Decode(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return f, rest
	}

	header, rest := decodeNext(buf)
	if header.RequestType != RespMenuHeader || header.TransactionID != 0x05800002 {
		t.Fatalf("unexpected header frame: %+v", header)
	}
	if len(header.Args) != 2 || header.Args[0].U32 != 8 {
		t.Fatalf("unexpected header args: %+v", header.Args)
	}

	for i := 0; i < 8; i++ {
		var item Frame
		item, rest = decodeNext(rest)
		if item.RequestType != RespMenuItem || item.TransactionID != 0x05800002 {
			t.Fatalf("item %d: unexpected frame: %+v", i, item)
		}
		if len(item.Args) != 12 {
			t.Fatalf("item %d: expected 12 args, got %d", i, len(item.Args))
		}
	}

	footer, rest := decodeNext(rest)
	if footer.RequestType != RespMenuFooter || footer.TransactionID != 0x05800002 {
		t.Fatalf("unexpected footer frame: %+v", footer)
	}
	if len(footer.Args) != 0 {
		t.Fatalf("expected empty footer args, got %+v", footer.Args)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
}

func TestMenuItemArtistRowMatchesCapturedWireBytes(t *testing.T) {
	// Grounded on the captured MenuItem frame for the ARTIST row in
	// original_source's historical demo exchange.
	want := []byte{
		0x11, 0x87, 0x23, 0x49, 0xae,
		0x11, 0x05, 0x80, 0x00, 0x02,
		0x10, 0x41, 0x01,
		0x0f, 0x0c, 0x14, 0x00, 0x00, 0x00, 0x0c,
		0x06, 0x06, 0x06, 0x02, 0x06, 0x02, 0x06, 0x06, 0x06, 0x06, 0x06, 0x06,
		0x11, 0x00, 0x00, 0x00, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x02,
		0x11, 0x00, 0x00, 0x00, 0x12,
		0x26, 0x00, 0x00, 0x00, 0x09, 0xff, 0xfa, 0x00, 0x41, 0x00, 0x52, 0x00, 0x54, 0x00, 0x49, 0x00, 0x53, 0x00, 0x54, 0xff, 0xfb, 0x00, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x02,
		0x26, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x81,
		0x11, 0x00, 0x00, 0x00, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x00,
		0x11, 0x00, 0x00, 0x00, 0x00,
	}

	item := MenuItem{ParentID1: 0, ParentID2: 2, Label: wrapSentinel("ARTIST"), Sublabel: "", Kind: KindRootArtist}
	got := MenuItemFrame(0x05800002, item).Encode()
	if !bytes.Equal(got, want) {
		t.Fatalf("encode mismatch:\n got=% x\nwant=% x", got, want)
	}
}
