package entity

import "testing"

func TestImportOrderForRanksWithinFamily(t *testing.T) {
	userRoles := ImportOrderFor("userRoles")
	users := ImportOrderFor("users")
	userGroups := ImportOrderFor("userGroups")

	if !(userRoles < users && users < userGroups) {
		t.Fatalf("expected userRoles < users < userGroups, got %d, %d, %d", userRoles, users, userGroups)
	}
}

func TestImportOrderForOrdersAcrossFamiliesByPriority(t *testing.T) {
	// "users" family has priority 1; "organisation" depends on it and has
	// priority 2, so every organisation member must sort after every user
	// family member.
	usersMax := ImportOrderFor("userGroups")
	orgMin := ImportOrderFor("organisationUnitLevels")

	if orgMin <= usersMax {
		t.Fatalf("expected organisation family members to sort after users family members: %d vs %d", orgMin, usersMax)
	}
}

func TestImportOrderForUnknownResourceReturnsZero(t *testing.T) {
	if got := ImportOrderFor("notAResource"); got != 0 {
		t.Fatalf("expected 0 for an unknown resource, got %d", got)
	}
}

func TestFieldsSelectionJoinsSupportedFields(t *testing.T) {
	v := EntityVersionInfo{SupportedFields: []string{"id", "name", "code"}}
	if got, want := v.FieldsSelection(), "id,name,code"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFieldsSelectionEmptyWhenNoSupportedFields(t *testing.T) {
	v := EntityVersionInfo{}
	if got := v.FieldsSelection(); got != "" {
		t.Fatalf("expected empty fields selection, got %q", got)
	}
}
