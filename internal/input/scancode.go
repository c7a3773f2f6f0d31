package input

// RDP scancodes are PC/AT Set-1 scancodes (MS-RDPBCGR §2.2.8.1.1.3.1.1a
// TS_KEYBOARD_EVENT); Linux evdev KEY_* codes were themselves derived
// from the same Set-1 table, so the non-extended range below is an
// identity map. Extended keys (RDP's KBDFLAGS_EXTENDED, an 0xE0 prefix
// on the wire) reuse the low scancode but land on a different evdev
// code — those are listed in extendedScancodeToEvdev and must be
// consulted first when the PDU's extended flag is set.

// scancodeToEvdev covers the non-extended range: letters, digits,
// punctuation, function keys, numpad, the left-hand modifiers, and the
// JIS/ISO keys (Ro, Henkan, Muhenkan, Katakana/Hiragana, Yen, numpad
// comma) that Set-1 also assigns outside the 0xE0 prefix.
var scancodeToEvdev = map[uint32]int{
	0x01: 1,  // ESC
	0x02: 2,  // 1
	0x03: 3,  // 2
	0x04: 4,  // 3
	0x05: 5,  // 4
	0x06: 6,  // 5
	0x07: 7,  // 6
	0x08: 8,  // 7
	0x09: 9,  // 8
	0x0A: 10, // 9
	0x0B: 11, // 0
	0x0C: 12, // MINUS
	0x0D: 13, // EQUAL
	0x0E: 14, // BACKSPACE
	0x0F: 15, // TAB
	0x10: 16, // Q
	0x11: 17, // W
	0x12: 18, // E
	0x13: 19, // R
	0x14: 20, // T
	0x15: 21, // Y
	0x16: 22, // U
	0x17: 23, // I
	0x18: 24, // O
	0x19: 25, // P
	0x1A: 26, // LEFTBRACE
	0x1B: 27, // RIGHTBRACE
	0x1C: 28, // ENTER
	0x1D: 29, // LEFTCTRL
	0x1E: 30, // A
	0x1F: 31, // S
	0x20: 32, // D
	0x21: 33, // F
	0x22: 34, // G
	0x23: 35, // H
	0x24: 36, // J
	0x25: 37, // K
	0x26: 38, // L
	0x27: 39, // SEMICOLON
	0x28: 40, // APOSTROPHE
	0x29: 41, // GRAVE
	0x2A: 42, // LEFTSHIFT
	0x2B: 43, // BACKSLASH
	0x2C: 44, // Z
	0x2D: 45, // X
	0x2E: 46, // C
	0x2F: 47, // V
	0x30: 48, // B
	0x31: 49, // N
	0x32: 50, // M
	0x33: 51, // COMMA
	0x34: 52, // DOT
	0x35: 53, // SLASH
	0x36: 54, // RIGHTSHIFT
	0x37: 55, // KPASTERISK
	0x38: 56, // LEFTALT
	0x39: 57, // SPACE
	0x3A: 58, // CAPSLOCK
	0x3B: 59, // F1
	0x3C: 60, // F2
	0x3D: 61, // F3
	0x3E: 62, // F4
	0x3F: 63, // F5
	0x40: 64, // F6
	0x41: 65, // F7
	0x42: 66, // F8
	0x43: 67, // F9
	0x44: 68, // F10
	0x45: 69, // NUMLOCK
	0x46: 70, // SCROLLLOCK
	0x47: 71, // KP7
	0x48: 72, // KP8
	0x49: 73, // KP9
	0x4A: 74, // KPMINUS
	0x4B: 75, // KP4
	0x4C: 76, // KP5
	0x4D: 77, // KP6
	0x4E: 78, // KPPLUS
	0x4F: 79, // KP1
	0x50: 80, // KP2
	0x51: 81, // KP3
	0x52: 82, // KP0
	0x53: 83, // KPDOT
	0x56: 86,  // 102ND
	0x57: 87,  // F11
	0x58: 88,  // F12
	0x64: 183, // F13
	0x65: 184, // F14
	0x66: 185, // F15
	0x67: 186, // F16
	0x68: 187, // F17
	0x69: 188, // F18
	0x6A: 189, // F19
	0x6B: 190, // F20
	0x6C: 191, // F21
	0x6D: 192, // F22
	0x6E: 193, // F23
	0x70: 93,  // KATAKANAHIRAGANA
	0x73: 89,  // RO
	0x76: 194, // F24
	0x79: 92,  // HENKAN
	0x7B: 94,  // MUHENKAN
	0x7D: 124, // YEN
	0x7E: 121, // KPCOMMA
}

// extendedScancodeToEvdev covers keys whose RDP PDU arrives with
// KBDFLAGS_EXTENDED set: navigation cluster, right-hand modifiers,
// Windows/menu keys, numpad enter/divide, media/browser keys, and the
// ACPI power-management and application-launcher keys OEM keyboards
// send with an 0xE0 prefix.
var extendedScancodeToEvdev = map[uint32]int{
	0x1C: 96,  // KPENTER
	0x1D: 97,  // RIGHTCTRL
	0x35: 98,  // KPSLASH
	0x37: 99,  // SYSRQ (PrintScreen)
	0x38: 100, // RIGHTALT
	0x46: 119, // PAUSE (as Ctrl+Break)
	0x47: 102, // HOME
	0x48: 103, // UP
	0x49: 104, // PAGEUP
	0x4B: 105, // LEFT
	0x4D: 106, // RIGHT
	0x4F: 107, // END
	0x50: 108, // DOWN
	0x51: 109, // PAGEDOWN
	0x52: 110, // INSERT
	0x53: 111, // DELETE
	0x5B: 125, // LEFTMETA
	0x5C: 126, // RIGHTMETA
	0x5D: 127, // COMPOSE (menu)
	0x20: 113, // MUTE
	0x2E: 114, // VOLUMEDOWN
	0x30: 115, // VOLUMEUP
	0x19: 163, // NEXTSONG
	0x10: 165, // PREVIOUSSONG
	0x24: 166, // STOPCD
	0x22: 164, // PLAYPAUSE
	0x6A: 158, // BACK (browser)
	0x69: 159, // FORWARD (browser)
	0x67: 173, // REFRESH (browser)
	0x68: 128, // STOP (browser)
	0x65: 217, // SEARCH (browser)
	0x66: 156, // BOOKMARKS (browser favorites)
	0x32: 172, // HOMEPAGE (browser)

	// ACPI power management and OEM application-launcher keys.
	0x01: 116, // POWER
	0x02: 142, // SLEEP
	0x03: 143, // WAKEUP
	0x04: 140, // CALC
	0x05: 157, // COMPUTER
	0x06: 155, // MAIL
	0x07: 150, // WWW
	0x08: 139, // MENU
	0x09: 136, // FIND
	0x0A: 137, // CUT
	0x0B: 133, // COPY
	0x0C: 135, // PASTE
	0x0D: 130, // PROPS
	0x0E: 131, // UNDO
	0x0F: 182, // REDO
	0x11: 181, // NEW
	0x12: 206, // CLOSE
	0x13: 210, // PRINT
	0x14: 144, // FILE
	0x15: 145, // SENDFILE
	0x16: 147, // XFER
	0x17: 148, // PROG1
	0x18: 149, // PROG2
	0x1A: 151, // MSDOS
	0x1B: 152, // SCREENLOCK
	0x1E: 154, // CYCLEWINDOWS
	0x1F: 160, // CLOSECD
	0x21: 161, // EJECTCD
	0x23: 162, // EJECTCLOSECD
	0x25: 167, // RECORD
	0x26: 168, // REWIND
	0x27: 169, // PHONE
	0x28: 170, // ISO
	0x29: 171, // CONFIG
	0x2A: 174, // EXIT
	0x2B: 175, // MOVE
	0x2C: 176, // EDIT
	0x2D: 177, // SCROLLUP
	0x2F: 178, // SCROLLDOWN
	0x31: 179, // KPLEFTPAREN
	0x33: 180, // KPRIGHTPAREN
	0x34: 200, // PLAYCD
	0x36: 201, // PAUSECD
	0x39: 202, // PROG3
	0x3A: 203, // PROG4
	0x3B: 204, // DASHBOARD
	0x3C: 205, // SUSPEND
	0x3D: 207, // PLAY
	0x3E: 208, // FASTFORWARD
	0x3F: 209, // BASSBOOST
	0x40: 211, // HP
	0x41: 212, // CAMERA
	0x42: 213, // SOUND
	0x43: 214, // QUESTION
	0x44: 215, // EMAIL
	0x45: 216, // CHAT
	0x4A: 218, // CONNECT
	0x4C: 219, // FINANCE
	0x4E: 220, // SPORT
	0x54: 221, // SHOP
	0x55: 222, // ALTERASE
	0x56: 223, // CANCEL
	0x57: 224, // BRIGHTNESSDOWN
	0x58: 225, // BRIGHTNESSUP
	0x59: 117, // KPEQUAL
	0x5A: 118, // KPPLUSMINUS
	0x5E: 120, // SCALE
	0x5F: 112, // MACRO
	0x60: 141, // SETUP
	0x61: 132, // FRONT
	0x62: 129, // AGAIN
}

// ScancodeToEvdev converts an RDP Set-1 scancode to a Linux evdev
// keycode. extended must match the PDU's KBDFLAGS_EXTENDED flag.
// Returns 0 if no mapping exists, in which case the caller should drop
// the event rather than inject a garbage keycode.
func ScancodeToEvdev(scancode uint32, extended bool) int {
	if extended {
		if code, ok := extendedScancodeToEvdev[scancode]; ok {
			return code
		}
		return 0
	}
	if code, ok := scancodeToEvdev[scancode]; ok {
		return code
	}
	return 0
}

// scancodeEntry is the reverse-map value: the RDP scancode and
// extended flag that ScancodeToEvdev would need to reproduce a given
// evdev keycode.
type scancodeEntry struct {
	scancode uint32
	extended bool
}

// evdevToScancode is derived from scancodeToEvdev/extendedScancodeToEvdev
// at package init rather than hand-authored, so it can never drift out
// of sync with the forward tables it inverts. The two forward tables
// assign disjoint evdev codes (confirmed by construction above), so
// this inversion is unambiguous.
var evdevToScancode = buildEvdevToScancode()

func buildEvdevToScancode() map[int]scancodeEntry {
	reverse := make(map[int]scancodeEntry, len(scancodeToEvdev)+len(extendedScancodeToEvdev))
	for sc, code := range scancodeToEvdev {
		reverse[code] = scancodeEntry{scancode: sc, extended: false}
	}
	for sc, code := range extendedScancodeToEvdev {
		reverse[code] = scancodeEntry{scancode: sc, extended: true}
	}
	return reverse
}

// EvdevToScancode converts a Linux evdev keycode back to the RDP Set-1
// scancode and KBDFLAGS_EXTENDED flag that would produce it via
// ScancodeToEvdev. ok is false if code has no known RDP scancode.
func EvdevToScancode(code int) (scancode uint32, extended bool, ok bool) {
	entry, found := evdevToScancode[code]
	if !found {
		return 0, false, false
	}
	return entry.scancode, entry.extended, true
}
