package bcibridge

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		kind CommandKind
		verb string
		arg  string
	}{
		{"", EmptyCommand, "", ""},
		{"   \r\n", EmptyCommand, "", ""},
		{"sv", RawCommand, "", ""},
		{"x1060110X\n", RawCommand, "", ""},
		{"/start", StructuredCommand, VerbStart, ""},
		{"/stop\r\n", StructuredCommand, VerbStop, ""},
		{"/exit", StructuredCommand, VerbExit, ""},
		{"/help me", StructuredCommand, VerbHelp, "me"},
		{"/test3", StructuredCommand, VerbTest, "3"},
		{"/test 3", StructuredCommand, VerbTest, "3"},
		{"/loc O1,O2", StructuredCommand, VerbLoc, "O1,O2"},
		{"/locO1,O2", StructuredCommand, VerbLoc, "O1,O2"},
		{"/loc  Fp1, Fp2 ", StructuredCommand, VerbLoc, "Fp1, Fp2"},
		{"/stopping", StructuredCommand, "", ""},
		{"/restart", StructuredCommand, "", ""},
		{"/", StructuredCommand, "", ""},
	}
	for _, tc := range tests {
		cmd := ParseCommand(tc.line)
		if cmd.Kind != tc.kind || cmd.Verb != tc.verb || cmd.Arg != tc.arg {
			t.Errorf("ParseCommand(%q) = {%v %q %q}, want {%v %q %q}", tc.line, cmd.Kind, cmd.Verb,
				cmd.Arg, tc.kind, tc.verb, tc.arg)
		}
		if want := tc.kind == StructuredCommand && tc.verb != ""; cmd.Recognized() != want {
			t.Errorf("ParseCommand(%q).Recognized() = %t, want %t", tc.line, cmd.Recognized(), want)
		}
	}
}

func TestTestPattern(t *testing.T) {
	for id := 0; id <= 5; id++ {
		cmd := ParseCommand("/test" + string(rune('0'+id)))
		p, err := cmd.TestPattern()
		if err != nil || p != id {
			t.Errorf("%q.TestPattern() = %d, %v, want %d", cmd.Raw, p, err, id)
		}
	}
	for _, bad := range []string{"/test6", "/test-1", "/test", "/test x"} {
		if _, err := ParseCommand(bad).TestPattern(); err == nil {
			t.Errorf("%q.TestPattern() succeeded, want error", bad)
		}
	}
}
