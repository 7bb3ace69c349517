package gossip

import (
	"errors"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	cases := []Message{
		NewMessage("alphie", MsgGoToCoordinates, 0, "2:2", "bravo"),
		NewMessage("remote", MsgStop, 3, "", ""),
		NewMessage("bravo", MsgRollCallBegin, 1, "FREE", ""),
		NewMessage("init", MsgStatusOutOfRange, 0, "alphie:bravo:charlie", ""),
	}
	for _, m := range cases {
		raw, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode(%v): %v", m, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%q): %v", raw, err)
		}
		if got != m {
			t.Fatalf("Decode(Encode(m)) = %+v, want %+v", got, m)
		}
	}
}

func TestEncodeWireLayout(t *testing.T) {
	raw, err := Encode(NewMessage("alphie", MsgStatusFree, 1, "GO_TO_COORDINATES:2:2", "bravo"))
	if err != nil {
		t.Fatal(err)
	}
	want := "alphie;STATUS_FREE;1;GO_TO_COORDINATES:2:2;bravo"
	if raw != want {
		t.Fatalf("Encode = %q, want %q", raw, want)
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]error{
		"alphie;STOP;0;":               ErrFieldCount,
		"alphie;STOP;0;;;extra":        ErrFieldCount,
		"":                             ErrFieldCount,
		"alphie;MESSAGE_TYPE.STOP;0;;": ErrUnknownType,
		"alphie;DANCE;0;;":             ErrUnknownType,
		"alphie;STOP;-1;;":             ErrBadHopCount,
		"alphie;STOP;x;;":              ErrBadHopCount,
		";STOP;0;;":                    ErrEmptySender,
	}
	for raw, want := range cases {
		if _, err := Decode(raw); !errors.Is(err, want) {
			t.Fatalf("Decode(%q) err = %v, want %v", raw, err, want)
		}
	}
}

func TestDecodeTrimsPadding(t *testing.T) {
	m, err := Decode("alphie;STOP;0;;\x00\x00")
	if err != nil {
		t.Fatalf("Decode padded: %v", err)
	}
	if m.Type != MsgStop || !m.Broadcast() {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestEncodeRejectsSeparatorInFields(t *testing.T) {
	if _, err := Encode(NewMessage("a", MsgReportStatus, 0, "x;y", "")); !errors.Is(err, ErrReservedChar) {
		t.Fatalf("err = %v, want ErrReservedChar", err)
	}
	if _, err := Encode(NewMessage("", MsgReportStatus, 0, "", "")); !errors.Is(err, ErrEmptySender) {
		t.Fatalf("err = %v, want ErrEmptySender", err)
	}
	if _, err := Encode(NewMessage("a", MsgType(200), 0, "", "")); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestPriorities(t *testing.T) {
	want := map[MsgType]int{
		MsgReportStatus:     1,
		MsgReportPosition:   1,
		MsgRollCallBegin:    8,
		MsgRollCallEnd:      8,
		MsgStatusOutOfRange: 8,
		MsgStatusFree:       7,
		MsgStatusMoving:     6,
		MsgGoToCoordinates:  6,
		MsgStop:             10,
	}
	for typ, p := range want {
		if got := typ.Priority(); got != p {
			t.Fatalf("%s.Priority() = %d, want %d", typ, got, p)
		}
	}
	if got := MsgType(99).Priority(); got != LowestPriority {
		t.Fatalf("unknown type priority = %d, want %d", got, LowestPriority)
	}
}

func TestTagTableIsBijective(t *testing.T) {
	seen := map[string]MsgType{}
	for _, typ := range MsgTypes() {
		tag := typ.String()
		if prev, dup := seen[tag]; dup {
			t.Fatalf("tag %q used by %d and %d", tag, prev, typ)
		}
		seen[tag] = typ
		back, err := ParseMsgType(tag)
		if err != nil || back != typ {
			t.Fatalf("ParseMsgType(%q) = %v,%v want %v", tag, back, err, typ)
		}
	}
	if len(seen) != len(msgTable) {
		t.Fatalf("MsgTypes() lists %d types, table has %d", len(seen), len(msgTable))
	}
}

func TestStatusTokens(t *testing.T) {
	for _, s := range []PeerStatus{StatusUnknown, StatusFree, StatusMoving, StatusOutOfRange, StatusStopped, StatusOperator} {
		got, ok := ParseStatus(s.String())
		if !ok || got != s {
			t.Fatalf("ParseStatus(%q) = %v,%v", s.String(), got, ok)
		}
	}
	if _, ok := ParseStatus("MESSAGE_TYPE_PRIORITY.STATUS_FREE"); ok {
		t.Fatal("ParseStatus accepted an enum repr")
	}
}
