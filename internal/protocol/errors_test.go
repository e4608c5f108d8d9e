package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrInvalidTarget,
		ErrConflict,
		ErrFull,
		ErrNotFound,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsKnownCommand(t *testing.T) {
	for _, c := range []string{
		CmdPlaceSource, CmdPlaceHealer, CmdRemoveSource, CmdSpawnRift,
		CmdPause, CmdResume, CmdAdvanceTime, CmdSave,
	} {
		if !IsKnownCommand(c) {
			t.Fatalf("expected known command: %q", c)
		}
	}
	if IsKnownCommand("DANCE") {
		t.Fatalf("expected unknown command rejected")
	}
}
