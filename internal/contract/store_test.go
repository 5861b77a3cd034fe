package contract

import "testing"

func TestStore_SaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	c := NewFormalSpecContract("plan-1", SlotDeployment, "single binary, systemd unit")
	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(c.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Intent != c.Intent || loaded.Slot != c.Slot {
		t.Errorf("loaded = %+v, want intent/slot matching %+v", loaded, c)
	}
}

func TestStore_FindByNameIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	c := &Contract{ID: "c1", Name: "Deploy Plan", Intent: "x", Version: 1}
	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.FindByName("deploy plan") == nil {
		t.Error("expected case-insensitive match")
	}
}

func TestStore_LoadMissingContractErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := s.Load("does-not-exist"); err == nil {
		t.Error("expected an error loading a missing contract")
	}
}

func TestStore_DeleteRemovesContract(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	c := &Contract{ID: "c1", Name: "c1", Intent: "x", Version: 1}
	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(c.ID); err == nil {
		t.Error("expected load to fail after delete")
	}
}
