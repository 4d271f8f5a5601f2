// Package keyboard decodes PS/2 scancode set 1 sequences into key events
// using the US keyboard layout.
package keyboard

import "kestrel/kernel/sync"

// KeyKind describes the type of a decoded Key.
type KeyKind uint8

// The supported key kinds.
const (
	// KeyNone is returned when a scancode does not complete a key press,
	// e.g. key releases, modifiers and prefix bytes.
	KeyNone KeyKind = iota

	// KeyUnicode is returned for keys that produce a character.
	KeyUnicode

	// KeyRaw is returned for keys without a character representation.
	KeyRaw
)

// KeyCode identifies a key that has no character representation.
type KeyCode uint8

// The raw keys reported by the decoder.
const (
	KeyCodeNone KeyCode = iota
	KeyCodeUp
	KeyCodeDown
	KeyCodeLeft
	KeyCodeRight
	KeyCodeHome
	KeyCodeEnd
	KeyCodePageUp
	KeyCodePageDown
	KeyCodeInsert
	KeyCodeDelete
	KeyCodeF1
	KeyCodeF2
	KeyCodeF3
	KeyCodeF4
	KeyCodeF5
	KeyCodeF6
	KeyCodeF7
	KeyCodeF8
	KeyCodeF9
	KeyCodeF10
	KeyCodeF11
	KeyCodeF12
)

// Key is a decoded key press.
type Key struct {
	Kind KeyKind

	// Char is set when Kind is KeyUnicode.
	Char rune

	// Code is set when Kind is KeyRaw.
	Code KeyCode
}

const (
	scancodeBreakBit    = 0x80
	scancodeExtended    = 0xe0
	scancodePause       = 0xe1
	scancodeCtrl        = 0x1d
	scancodeLeftShift   = 0x2a
	scancodeRightShift  = 0x36
	scancodeAlt         = 0x38
	scancodeCapsLock    = 0x3a
	scancodeF1          = 0x3b
	scancodeF10         = 0x44
	scancodeF11         = 0x57
	scancodeF12         = 0x58
	scancodeKeypadFirst = 0x47
	scancodeKeypadLast  = 0x53

	// pauseSequenceLen is the number of bytes following the 0xe1 prefix
	// in the pause key make sequence.
	pauseSequenceLen = 5
)

var (
	// US layout, indexed by make code.
	normalLayout  = "\x00\x1b1234567890-=\x08\tqwertyuiop[]\n\x00asdfghjkl;'`\x00\\zxcvbnm,./\x00*\x00 "
	shiftedLayout = "\x00\x1b!@#$%^&*()_+\x08\tQWERTYUIOP{}\n\x00ASDFGHJKL:\"~\x00|ZXCVBNM<>?\x00*\x00 "

	// Keypad keys 0x47-0x53 with num lock on.
	keypadLayout = "789-456+1230."

	extendedKeys = [...]struct {
		code byte
		key  Key
	}{
		{0x48, Key{Kind: KeyRaw, Code: KeyCodeUp}},
		{0x50, Key{Kind: KeyRaw, Code: KeyCodeDown}},
		{0x4b, Key{Kind: KeyRaw, Code: KeyCodeLeft}},
		{0x4d, Key{Kind: KeyRaw, Code: KeyCodeRight}},
		{0x47, Key{Kind: KeyRaw, Code: KeyCodeHome}},
		{0x4f, Key{Kind: KeyRaw, Code: KeyCodeEnd}},
		{0x49, Key{Kind: KeyRaw, Code: KeyCodePageUp}},
		{0x51, Key{Kind: KeyRaw, Code: KeyCodePageDown}},
		{0x52, Key{Kind: KeyRaw, Code: KeyCodeInsert}},
		{0x53, Key{Kind: KeyRaw, Code: KeyCodeDelete}},
		{0x1c, Key{Kind: KeyUnicode, Char: '\n'}},
		{0x35, Key{Kind: KeyUnicode, Char: '/'}},
	}
)

// Decoder is a stateful scancode set 1 decoder. It tracks modifier state
// across calls and is safe to feed from an interrupt handler.
type Decoder struct {
	lock sync.IRQSpinlock

	leftShift, rightShift bool
	capsLock              bool
	extended              bool
	pauseBytesLeft        uint8
}

// Feed processes a single scancode byte and returns the key it completes.
// Malformed or unknown sequences are dropped and yield KeyNone.
func (d *Decoder) Feed(scancode byte) Key {
	d.lock.Acquire()
	key := d.feed(scancode)
	d.lock.Release()
	return key
}

func (d *Decoder) feed(scancode byte) Key {
	if d.pauseBytesLeft != 0 {
		d.pauseBytesLeft--
		return Key{}
	}

	switch scancode {
	case scancodeExtended:
		d.extended = true
		return Key{}
	case scancodePause:
		d.extended = false
		d.pauseBytesLeft = pauseSequenceLen
		return Key{}
	}

	extended := d.extended
	d.extended = false

	released := scancode&scancodeBreakBit != 0
	code := scancode &^ scancodeBreakBit

	// Modifiers. Ctrl and alt are swallowed and do not alter the keys
	// pressed with them; 0xe0 0x2a/0xe0 0x36 are fake shifts and are
	// ignored.
	switch code {
	case scancodeCtrl, scancodeAlt:
		return Key{}
	case scancodeLeftShift:
		if !extended {
			d.leftShift = !released
		}
		return Key{}
	case scancodeRightShift:
		if !extended {
			d.rightShift = !released
		}
		return Key{}
	case scancodeCapsLock:
		if !released {
			d.capsLock = !d.capsLock
		}
		return Key{}
	}

	if released {
		return Key{}
	}

	if extended {
		for _, entry := range extendedKeys {
			if entry.code == code {
				return entry.key
			}
		}
		return Key{}
	}

	switch {
	case code >= scancodeF1 && code <= scancodeF10:
		return Key{Kind: KeyRaw, Code: KeyCodeF1 + KeyCode(code-scancodeF1)}
	case code == scancodeF11:
		return Key{Kind: KeyRaw, Code: KeyCodeF11}
	case code == scancodeF12:
		return Key{Kind: KeyRaw, Code: KeyCodeF12}
	case code >= scancodeKeypadFirst && code <= scancodeKeypadLast:
		return Key{Kind: KeyUnicode, Char: rune(keypadLayout[code-scancodeKeypadFirst])}
	case int(code) >= len(normalLayout):
		return Key{}
	}

	return d.translate(code)
}

// translate maps a make code from the main key block to a character.
func (d *Decoder) translate(code byte) Key {
	ch := normalLayout[code]
	if ch == 0 {
		return Key{}
	}

	shift := d.leftShift || d.rightShift
	isLetter := ch >= 'a' && ch <= 'z'

	switch {
	case isLetter && shift != d.capsLock:
		ch = shiftedLayout[code]
	case !isLetter && shift:
		ch = shiftedLayout[code]
	}

	return Key{Kind: KeyUnicode, Char: rune(ch)}
}
