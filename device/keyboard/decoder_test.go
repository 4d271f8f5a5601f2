package keyboard

import "testing"

func feedAll(d *Decoder, scancodes ...byte) []Key {
	var keys []Key
	for _, sc := range scancodes {
		if key := d.Feed(sc); key.Kind != KeyNone {
			keys = append(keys, key)
		}
	}
	return keys
}

func TestDecoderCharacters(t *testing.T) {
	specs := []struct {
		descr     string
		scancodes []byte
		exp       string
	}{
		{"lowercase letter", []byte{0x1e, 0x9e}, "a"},
		{"left shift", []byte{0x2a, 0x1e, 0x9e, 0xaa, 0x1e}, "Aa"},
		{"right shift", []byte{0x36, 0x10, 0xb6, 0x10}, "Qq"},
		{"shifted symbols", []byte{0x2a, 0x02, 0x0d, 0x27, 0x28, 0x2b, 0xaa}, "!+:\"|"},
		{"digits and punctuation", []byte{0x0b, 0x0c, 0x33, 0x34, 0x35, 0x29, 0x39}, "0-,./` "},
		{"caps lock letters", []byte{0x3a, 0xba, 0x1f, 0x02}, "S1"},
		{"caps lock with shift", []byte{0x3a, 0xba, 0x2a, 0x1f, 0xaa, 0x3a, 0xba, 0x1f}, "ss"},
		{"control characters", []byte{0x1c, 0x0e, 0x0f, 0x01}, "\n\b\t\x1b"},
		{"ctrl is ignored", []byte{0x1d, 0x2e, 0x9d, 0x2e, 0xe0, 0x1d, 0x2a, 0x2e, 0xe0, 0x9d}, "ccC"},
		{"keypad with num lock", []byte{0x47, 0x4c, 0x53, 0x4e}, "75.+"},
		{"extended keypad", []byte{0xe0, 0x1c, 0xe0, 0x35, 0xe0, 0xb5}, "\n/"},
		{"release only", []byte{0x9e, 0xaa, 0xb6}, ""},
		{"fake shift is ignored", []byte{0xe0, 0x2a, 0x1e, 0xe0, 0xaa}, "a"},
		{"alt is swallowed", []byte{0x38, 0x1e, 0xb8}, "a"},
		{"pause sequence", []byte{0xe1, 0x1d, 0x45, 0xe1, 0x9d, 0xc5, 0x30}, "b"},
		{"unknown codes", []byte{0x5b, 0x7f, 0xe0, 0x10}, ""},
	}

	for specIndex, spec := range specs {
		var d Decoder

		var got []byte
		for _, key := range feedAll(&d, spec.scancodes...) {
			if key.Kind != KeyUnicode {
				t.Errorf("[spec %d] %s: expected only unicode keys; got %+v", specIndex, spec.descr, key)
				continue
			}
			got = append(got, byte(key.Char))
		}

		if string(got) != spec.exp {
			t.Errorf("[spec %d] %s: expected %q; got %q", specIndex, spec.descr, spec.exp, got)
		}
	}
}

func TestDecoderRawKeys(t *testing.T) {
	specs := []struct {
		scancodes []byte
		exp       KeyCode
	}{
		{[]byte{0xe0, 0x48}, KeyCodeUp},
		{[]byte{0xe0, 0x50}, KeyCodeDown},
		{[]byte{0xe0, 0x4b}, KeyCodeLeft},
		{[]byte{0xe0, 0x4d}, KeyCodeRight},
		{[]byte{0xe0, 0x47}, KeyCodeHome},
		{[]byte{0xe0, 0x4f}, KeyCodeEnd},
		{[]byte{0xe0, 0x49}, KeyCodePageUp},
		{[]byte{0xe0, 0x51}, KeyCodePageDown},
		{[]byte{0xe0, 0x52}, KeyCodeInsert},
		{[]byte{0xe0, 0x53}, KeyCodeDelete},
		{[]byte{0x3b}, KeyCodeF1},
		{[]byte{0x40}, KeyCodeF6},
		{[]byte{0x44}, KeyCodeF10},
		{[]byte{0x57}, KeyCodeF11},
		{[]byte{0x58}, KeyCodeF12},
	}

	for specIndex, spec := range specs {
		var d Decoder

		keys := feedAll(&d, spec.scancodes...)
		if len(keys) != 1 {
			t.Errorf("[spec %d] expected a single key; got %d", specIndex, len(keys))
			continue
		}

		if keys[0].Kind != KeyRaw || keys[0].Code != spec.exp {
			t.Errorf("[spec %d] expected raw key %d; got %+v", specIndex, spec.exp, keys[0])
		}
	}
}

func TestDecoderExtendedPrefixIsOneShot(t *testing.T) {
	var d Decoder

	// 0x48 after a completed extended sequence is keypad 8.
	keys := feedAll(&d, 0xe0, 0x48, 0xe0, 0xc8, 0x48)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys; got %d", len(keys))
	}

	if keys[0].Kind != KeyRaw || keys[0].Code != KeyCodeUp {
		t.Errorf("expected first key to be KeyCodeUp; got %+v", keys[0])
	}

	if keys[1].Kind != KeyUnicode || keys[1].Char != '8' {
		t.Errorf("expected second key to be '8'; got %+v", keys[1])
	}
}

func TestDecoderShiftState(t *testing.T) {
	var d Decoder

	// Releasing one shift key keeps the other one active.
	keys := feedAll(&d, 0x2a, 0x36, 0xaa, 0x1e, 0xb6, 0x1e)
	if len(keys) != 2 || keys[0].Char != 'A' || keys[1].Char != 'a' {
		t.Fatalf("expected \"Aa\"; got %+v", keys)
	}
}
