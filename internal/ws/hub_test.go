package ws

import "testing"

func TestHubAddAndRemoveConversationClient(t *testing.T) {
	hub := NewHub()

	hub.AddConversationClient(1, nil, ConnInfo{UserID: 4})
	if len(hub.convRooms) != 1 {
		t.Fatalf("expected conversation room to be created")
	}

	hub.RemoveConversationClient(1, nil)
	if len(hub.convRooms) != 0 {
		t.Fatalf("expected conversation room to be removed")
	}
}

func TestHubAddAndRemoveGroupClient(t *testing.T) {
	hub := NewHub()

	hub.AddGroupClient(2, nil, ConnInfo{UserID: 4})
	if len(hub.groupRooms) != 1 {
		t.Fatalf("expected group room to be created")
	}

	hub.RemoveGroupClient(2, nil)
	if len(hub.groupRooms) != 0 {
		t.Fatalf("expected group room to be removed")
	}
}
