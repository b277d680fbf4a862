package wsfeed

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/pkg/models"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(peripheralID uint64) *Client {
	return &Client{
		conn:         nil, // Not needed for hub tests
		peripheralID: peripheralID,
		send:         make(chan Message, 64),
		logger:       testLogger(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())
	if hub.clients == nil {
		t.Error("hub.clients map is nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestRegister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient(1)

	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}
}

func TestUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient(1)

	hub.Register(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	_, ok := <-client.send
	if ok {
		t.Error("client.send channel is not closed")
	}
}

func TestUnregisterNotRegistered(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient(1)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Unregister() panicked: %v", r)
		}
	}()

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestBroadcast_OnlyMatchingPeripheral(t *testing.T) {
	hub := NewHub(testLogger())

	client0 := newTestClient(0)
	client1 := newTestClient(1)
	hub.Register(client0)
	hub.Register(client1)

	msg := Message{
		Type:         MessageAttributeUpdated,
		PeripheralID: 0,
		Data:         AttributeUpdated{Attribute: models.Attribute{ID: 3, Name: "msg", Value: models.NewString("hi")}},
	}
	hub.Broadcast(msg)

	select {
	case received := <-client0.send:
		if received.PeripheralID != 0 {
			t.Errorf("client0 received PeripheralID = %d, want 0", received.PeripheralID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client0 did not receive message")
	}

	select {
	case <-client1.send:
		t.Error("client1 should not have received a message scoped to peripheral 0")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(testLogger())

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Broadcast() to empty hub panicked: %v", r)
		}
	}()

	hub.Broadcast(Message{Type: MessageAttributeUpdated, PeripheralID: 0})
}

func TestBroadcastDropsMessagesWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient(0)
	hub.Register(client)

	for i := 0; i < 64; i++ {
		client.send <- Message{Type: MessageAttributeUpdated, PeripheralID: 0}
	}
	if len(client.send) != 64 {
		t.Fatalf("client.send buffer length = %d, want 64", len(client.send))
	}

	hub.Broadcast(Message{Type: MessageAttributeUpdated, PeripheralID: 0})

	if len(client.send) != 64 {
		t.Errorf("client.send buffer length = %d, want 64 (message should have been dropped)", len(client.send))
	}
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	numClients := 50
	numBroadcasts := 100

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := newTestClient(uint64(id))
			hub.Register(client)
			go func() {
				for range client.send {
				}
			}()
			time.Sleep(10 * time.Millisecond)
			hub.Unregister(client)
		}(i)
	}

	for i := 0; i < numBroadcasts; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			hub.Broadcast(Message{Type: MessageAttributeUpdated, PeripheralID: uint64(id % 50)})
		}(i)
	}

	wg.Wait()

	if hub.ClientCount() < 0 {
		t.Errorf("ClientCount() = %d, should not be negative", hub.ClientCount())
	}
}

func TestConcurrentClientCount(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	var countSum int64

	for i := 0; i < 10; i++ {
		hub.Register(newTestClient(uint64(i)))
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			atomic.AddInt64(&countSum, int64(hub.ClientCount()))
		}()
	}

	wg.Wait()

	if want := int64(10 * 100); countSum != want {
		t.Errorf("sum of all ClientCount() calls = %d, want %d", countSum, want)
	}
}

func TestUnregisterTwice(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient(1)

	hub.Register(client)
	hub.Unregister(client)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("second Unregister() panicked: %v", r)
		}
	}()

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}
