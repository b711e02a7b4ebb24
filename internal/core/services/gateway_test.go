package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/app/registry"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/domain"
	"github.com/cboydstun/bounce-v3-sub014/internal/geo"
)

func newTestGateway(rooms *registry.Registry, presence *fakePresence) *ConnectionGateway {
	return NewConnectionGateway(testLogger(), rooms, presence, 50, time.Minute, 45*time.Second)
}

func TestHandleConnectJoinsExpectedRooms(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	presence := newFakePresence()
	g := newTestGateway(rooms, presence)

	c := &fakeClient{id: "sock-1", contractorID: "X"}
	profile := &domain.ContractorProfile{ID: "X", Skills: []string{"delivery", "setup"}}
	if err := g.HandleConnect(context.Background(), c, profile); err != nil {
		t.Fatal(err)
	}

	want := []string{"contractor:X", "global", "skill:delivery", "skill:setup"}
	got := sortedCopy(rooms.RoomsFor("X"))
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("room set = %v, want %v", got, want)
	}
	if !rooms.IsLive("X") {
		t.Error("contractor not live after connect")
	}
	if presence.marks("X") != 1 {
		t.Error("presence mirror not updated on connect")
	}
}

func TestHandleConnectToleratesBlankSkills(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	g := newTestGateway(rooms, newFakePresence())

	c := &fakeClient{id: "sock-1", contractorID: "X"}
	profile := &domain.ContractorProfile{ID: "X", Skills: []string{"", "  ", "delivery"}}
	if err := g.HandleConnect(context.Background(), c, profile); err != nil {
		t.Fatal(err)
	}

	want := []string{"contractor:X", "global", "skill:delivery"}
	got := sortedCopy(rooms.RoomsFor("X"))
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("room set = %v, want %v", got, want)
	}
}

func TestHandleConnectRejectsAnonymous(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	g := newTestGateway(rooms, newFakePresence())

	c := &fakeClient{id: "sock-1", contractorID: ""}
	err := g.HandleConnect(context.Background(), c, &domain.ContractorProfile{})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if len(rooms.StatsByRoom()) != 0 {
		t.Error("anonymous connection joined rooms")
	}

	withID := &fakeClient{id: "sock-2", contractorID: "X"}
	if err := g.HandleConnect(context.Background(), withID, nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("nil profile: err = %v, want ErrUnauthenticated", err)
	}
}

func TestHandleConnectSurvivesPresenceOutage(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	presence := newFakePresence()
	presence.err = errors.New("redis down")
	g := newTestGateway(rooms, presence)

	c := &fakeClient{id: "sock-1", contractorID: "X"}
	if err := g.HandleConnect(context.Background(), c, &domain.ContractorProfile{ID: "X"}); err != nil {
		t.Fatalf("presence outage broke connect: %v", err)
	}
	if !rooms.IsLive("X") {
		t.Error("registry registration skipped during presence outage")
	}
}

func TestHandleLocationUpdate(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	g := newTestGateway(rooms, newFakePresence())
	c := &fakeClient{id: "sock-1", contractorID: "X"}
	if err := g.HandleConnect(context.Background(), c, &domain.ContractorProfile{ID: "X"}); err != nil {
		t.Fatal(err)
	}

	t.Run("swaps the location room", func(t *testing.T) {
		if err := g.HandleLocationUpdate(context.Background(), c, 29.4241, -98.4936, 50); err != nil {
			t.Fatal(err)
		}
		first := testLocationRooms(rooms, "X")
		if len(first) != 1 {
			t.Fatalf("location rooms = %v, want exactly one", first)
		}
		if err := g.HandleLocationUpdate(context.Background(), c, 30.2672, -97.7431, 50); err != nil {
			t.Fatal(err)
		}
		second := testLocationRooms(rooms, "X")
		if len(second) != 1 || second[0] == first[0] {
			t.Errorf("location room after move = %v (was %v)", second, first)
		}
	})

	t.Run("defaults a missing radius", func(t *testing.T) {
		if err := g.HandleLocationUpdate(context.Background(), c, 29.4241, -98.4936, 0); err != nil {
			t.Fatal(err)
		}
		lr := testLocationRooms(rooms, "X")
		desc := geo.ParseRoomKey(lr[0])
		if desc == nil || desc.RadiusKm != 50 {
			t.Errorf("room key %q does not carry the default radius", lr[0])
		}
	})

	t.Run("rejects updates from unregistered contractors", func(t *testing.T) {
		ghost := &fakeClient{id: "sock-ghost", contractorID: "ghost"}
		err := g.HandleLocationUpdate(context.Background(), ghost, 1, 1, 10)
		if !errors.Is(err, domain.ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	})
}

func TestHandleDisconnectClearsEverything(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	presence := newFakePresence()
	g := newTestGateway(rooms, presence)

	c := &fakeClient{id: "sock-1", contractorID: "X"}
	if err := g.HandleConnect(context.Background(), c, &domain.ContractorProfile{ID: "X", Skills: []string{"delivery"}}); err != nil {
		t.Fatal(err)
	}
	if err := g.HandleLocationUpdate(context.Background(), c, 29.4241, -98.4936, 50); err != nil {
		t.Fatal(err)
	}

	g.HandleDisconnect(context.Background(), c)

	if rooms.IsLive("X") {
		t.Error("contractor still live after disconnect")
	}
	if got := rooms.RoomsFor("X"); len(got) != 0 {
		t.Errorf("rooms survive disconnect: %v", got)
	}
	if got := rooms.ContractorsInRadius(29.4241, -98.4936, 1); len(got) != 0 {
		t.Error("location survives disconnect")
	}
	if len(presence.offline) != 1 || presence.offline[0] != "X" {
		t.Errorf("presence offline marks = %v", presence.offline)
	}
}

func TestHandleDisconnectKeepsRoomsWhileOtherSocketsRemain(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	presence := newFakePresence()
	g := newTestGateway(rooms, presence)

	profile := &domain.ContractorProfile{ID: "X", Skills: []string{"delivery"}}
	phone := &fakeClient{id: "sock-phone", contractorID: "X"}
	tablet := &fakeClient{id: "sock-tablet", contractorID: "X"}
	if err := g.HandleConnect(context.Background(), phone, profile); err != nil {
		t.Fatal(err)
	}
	if err := g.HandleConnect(context.Background(), tablet, profile); err != nil {
		t.Fatal(err)
	}

	g.HandleDisconnect(context.Background(), phone)
	if !rooms.IsLive("X") {
		t.Fatal("contractor went dark with a socket still open")
	}
	if got := len(rooms.RoomsFor("X")); got == 0 {
		t.Error("rooms cleared while the tablet is connected")
	}
	if len(presence.offline) != 0 {
		t.Error("presence marked offline with a socket still open")
	}

	g.HandleDisconnect(context.Background(), tablet)
	if rooms.IsLive("X") || len(rooms.RoomsFor("X")) != 0 {
		t.Error("last disconnect did not clear membership")
	}
}

func TestHandleDisconnectBeforeConnectIsNoOp(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	g := newTestGateway(rooms, newFakePresence())

	g.HandleDisconnect(context.Background(), &fakeClient{id: "sock-1", contractorID: "X"})
	g.HandleDisconnect(context.Background(), &fakeClient{id: "sock-2", contractorID: ""})
	// nothing to assert beyond not panicking and not inventing state
	if len(rooms.StatsByRoom()) != 0 {
		t.Error("disconnect created state")
	}
}

func TestHandleHeartbeatRefreshesPresence(t *testing.T) {
	rooms := registry.NewRegistry(geo.NewKeyer(2))
	presence := newFakePresence()
	g := NewConnectionGateway(testLogger(), rooms, presence, 50, 5*time.Millisecond, 45*time.Second)

	c := &fakeClient{id: "sock-1", contractorID: "X"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.HandleHeartbeat(ctx, c)
		close(done)
	}()

	deadline := time.After(time.Second)
	for presence.marks("X") < 2 {
		select {
		case <-deadline:
			t.Fatal("heartbeat never refreshed presence")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop did not stop on context cancellation")
	}
}

func testLocationRooms(r *registry.Registry, contractorID string) []string {
	var out []string
	for _, room := range r.RoomsFor(contractorID) {
		if desc := geo.ParseRoomKey(room); desc != nil && desc.Type == geo.RoomLocation {
			out = append(out, room)
		}
	}
	sort.Strings(out)
	return out
}
