package directory

import (
	"context"
	"testing"
)

func TestMemoryResolver(t *testing.T) {
	r := NewMemoryResolver()
	r.AddUser("usr_1")
	r.AddListing("lst_1")
	ctx := context.Background()

	if ok, _ := r.UserExists(ctx, "usr_1"); !ok {
		t.Error("registered user not found")
	}
	if ok, _ := r.UserExists(ctx, "usr_2"); ok {
		t.Error("unregistered user found")
	}
	if ok, _ := r.ListingExists(ctx, "lst_1"); !ok {
		t.Error("registered listing not found")
	}
	if ok, _ := r.ListingExists(ctx, "lst_2"); ok {
		t.Error("unregistered listing found")
	}
}

func TestMemoryResolver_AllowAll(t *testing.T) {
	r := NewMemoryResolver()
	r.AllowAll = true
	ctx := context.Background()

	if ok, _ := r.UserExists(ctx, "anyone"); !ok {
		t.Error("AllowAll rejected a user")
	}
	if ok, _ := r.ListingExists(ctx, "anything"); !ok {
		t.Error("AllowAll rejected a listing")
	}
}
