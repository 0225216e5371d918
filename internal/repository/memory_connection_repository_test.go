package repository

import (
	"context"
	"testing"
	"time"

	"finlink/internal/domain"
)

func testConnection(userID string) *domain.LinkedConnection {
	return &domain.LinkedConnection{
		ID:                  "conn-" + userID,
		UserID:              userID,
		InstitutionID:       "ins_1",
		InstitutionName:     "Test Bank",
		EncryptedCredential: "sealed",
		Status:              domain.ConnectionActive,
		SessionToken:        "lnk_test",
		CreatedAt:           time.Now(),
	}
}

func testAccounts(conn *domain.LinkedConnection, n int) []*domain.LinkedAccount {
	accounts := make([]*domain.LinkedAccount, n)
	for i := range accounts {
		accounts[i] = &domain.LinkedAccount{
			ID:           conn.ID + "-acct-" + string(rune('a'+i)),
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			ExternalID:   "ext-" + string(rune('a'+i)),
			Currency:     "USD",
		}
	}
	return accounts
}

func TestMemoryConnectionRepository_CreateWithAccounts(t *testing.T) {
	repo := NewMemoryConnectionRepository()
	ctx := context.Background()

	conn := testConnection("user-1")
	if err := repo.CreateWithAccounts(ctx, conn, testAccounts(conn, 2), nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := repo.GetConnection(ctx, conn.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.InstitutionName != "Test Bank" {
		t.Errorf("Expected Test Bank, got %s", got.InstitutionName)
	}

	accounts, err := repo.ListAccounts(ctx, conn.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(accounts) != 2 {
		t.Errorf("Expected 2 accounts, got %d", len(accounts))
	}

	usage, err := repo.CountUsage(ctx, "user-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if usage.Connections != 1 || usage.Accounts != 2 {
		t.Errorf("Expected usage 1/2, got %+v", usage)
	}
}

func TestMemoryConnectionRepository_PrecommitAbortsWrite(t *testing.T) {
	repo := NewMemoryConnectionRepository()
	ctx := context.Background()

	conn := testConnection("user-1")
	denial := domain.NewAdmissionError(domain.DenyLimitReached, "limit reached")
	err := repo.CreateWithAccounts(ctx, conn, testAccounts(conn, 2), func(usage domain.TierUsage) error {
		if usage.Connections != 0 {
			t.Errorf("Expected empty usage inside transaction, got %+v", usage)
		}
		return denial
	})
	if err != denial {
		t.Fatalf("Expected the precommit error back, got %v", err)
	}

	// Nothing may be visible after the abort.
	if _, err := repo.GetConnection(ctx, conn.ID); err == nil {
		t.Error("Aborted write must not leave a connection behind")
	}
	usage, _ := repo.CountUsage(ctx, "user-1")
	if usage.Connections != 0 || usage.Accounts != 0 {
		t.Errorf("Aborted write must not count as usage, got %+v", usage)
	}
}

func TestMemoryConnectionRepository_PrecommitSeesCommittedUsage(t *testing.T) {
	repo := NewMemoryConnectionRepository()
	ctx := context.Background()

	first := testConnection("user-1")
	if err := repo.CreateWithAccounts(ctx, first, testAccounts(first, 2), nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	second := testConnection("user-1")
	second.ID = "conn-user-1-b"
	var observed domain.TierUsage
	err := repo.CreateWithAccounts(ctx, second, testAccounts(second, 1), func(usage domain.TierUsage) error {
		observed = usage
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if observed.Connections != 1 || observed.Accounts != 2 {
		t.Errorf("Expected precommit usage 1/2, got %+v", observed)
	}
}

func TestMemoryConnectionRepository_CountUsageSkipsRevoked(t *testing.T) {
	repo := NewMemoryConnectionRepository()
	ctx := context.Background()

	conn := testConnection("user-1")
	conn.Status = domain.ConnectionRevoked
	if err := repo.CreateWithAccounts(ctx, conn, testAccounts(conn, 3), nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	usage, _ := repo.CountUsage(ctx, "user-1")
	if usage.Connections != 0 || usage.Accounts != 0 {
		t.Errorf("Revoked connections must not count, got %+v", usage)
	}
}

func TestMemoryConnectionRepository_ValidatesConnection(t *testing.T) {
	repo := NewMemoryConnectionRepository()

	conn := testConnection("user-1")
	conn.EncryptedCredential = ""
	err := repo.CreateWithAccounts(context.Background(), conn, nil, nil)
	if err == nil {
		t.Fatal("Expected validation to reject a connection without a credential")
	}
}
