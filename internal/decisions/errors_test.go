package decisions

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrGameNotFound,
		ErrGameComplete,
		ErrRoundClosed,
		ErrRoundMismatch,
		ErrTeamNotFound,
		ErrBadRequest,
		ErrSchema,
		ErrConflict,
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
