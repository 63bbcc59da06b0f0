package bus

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
)

func TestTableEventOnlyReachesItsOwnChannel(t *testing.T) {
	b := New()
	tableA, tableB := uuid.New(), uuid.New()

	subA := b.SubscribeTable(tableA)
	defer subA.Unsubscribe()
	subB := b.SubscribeTable(tableB)
	defer subB.Unsubscribe()

	b.TableEvent(tableA, "hand-started", nil)

	select {
	case evt := <-subA.Events():
		if evt.Kind != "hand-started" {
			t.Errorf("kind = %q, want hand-started", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber to table A never received the event")
	}

	select {
	case evt := <-subB.Events():
		t.Fatalf("subscriber to table B should not receive table A's event, got %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPrivateEventIsNotVisibleToOtherAgents(t *testing.T) {
	b := New()
	alice, bob := agent.NewID(), agent.NewID()

	aliceSub := b.SubscribeAgent(alice)
	defer aliceSub.Unsubscribe()
	bobSub := b.SubscribeAgent(bob)
	defer bobSub.Unsubscribe()

	b.PrivateEvent(alice, "hole-cards", []string{"As", "Kd"})

	select {
	case <-aliceSub.Events():
	case <-time.After(time.Second):
		t.Fatal("alice never received her hole cards")
	}

	select {
	case evt := <-bobSub.Events():
		t.Fatalf("bob must never see alice's private event, got %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDuelEventsShareOneGlobalChannel(t *testing.T) {
	b := New()
	sub := b.SubscribeDuels()
	defer sub.Unsubscribe()

	g1, g2 := uuid.New(), uuid.New()
	b.DuelEvent(g1, "duel-opened", nil)
	b.DuelEvent(g2, "duel-opened", nil)

	for i := 0; i < 2; i++ {
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatalf("expected 2 events on the shared duel channel, got %d", i)
		}
	}
}

func TestBackpressureDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	sub := b.Subscribe("flood")

	for i := 0; i < subscriberQueueSize+10; i++ {
		done := make(chan struct{})
		go func() {
			b.Publish("flood", "tick", i)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("Publish blocked on a full subscriber queue at iteration %d", i)
		}
	}
}

func TestUnsubscribeClosesTheEventChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe("x")
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	if ok {
		t.Fatal("expected the events channel to be closed after Unsubscribe")
	}
}
