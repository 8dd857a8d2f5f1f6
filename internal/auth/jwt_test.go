package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	pair, err := Issue(42, RoleTeacher, "face-backend", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "face-backend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	actor, err := claims.Actor()
	if err != nil {
		t.Fatal(err)
	}
	if actor.UserID != 42 || actor.Role != RoleTeacher {
		t.Errorf("actor = %+v", actor)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue(42, RoleAdmin, "face-backend", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(pair.AccessToken, "other-secret", "face-backend"); err == nil {
		t.Error("token signed with a different key must not parse")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, err := Issue(42, RoleAdmin, "someone-else", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "face-backend"); err == nil {
		t.Error("token from a different issuer must not parse")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	pair, err := Issue(42, RoleStudent, "face-backend", "secret", -time.Minute, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "face-backend"); err == nil {
		t.Error("expired token must not parse")
	}
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	if _, err := ParseRole("WIZARD"); err == nil {
		t.Error("unknown role accepted")
	}
}
