package blob

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/drhuangmht/owlnest/internal/swarm"
)

func newTestHost(t *testing.T) host.Host {
	t.Helper()
	h, err := libp2p.New(
		libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
		libp2p.DisableRelay(),
	)
	if err != nil {
		t.Fatalf("creating libp2p host: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func connectHosts(t *testing.T, a, b host.Host) {
	t.Helper()
	addrInfo := peer.AddrInfo{ID: b.ID(), Addrs: b.Addrs()}
	if err := a.Connect(context.Background(), addrInfo); err != nil {
		t.Fatalf("connecting hosts: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
}

func startBehaviour(t *testing.T, h host.Host, chunkSize int) (*Behaviour, Handle, *swarm.Broadcaster) {
	t.Helper()
	bus := swarm.NewBroadcaster()
	b := New(h, 5*time.Second, chunkSize, bus)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	time.Sleep(10 * time.Millisecond)
	return b, HandleFrom(b, 5*time.Second), bus
}

func writeRandomFile(t *testing.T, dir string, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func hashFile(t *testing.T, path string) [32]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return sha256.Sum256(data)
}

// TestSingleFileSendReceive matches seed scenario 3: A sends a file to B, B
// accepts, and the received bytes are identical to the source.
func TestSingleFileSendReceive(t *testing.T) {
	hostA := newTestHost(t)
	hostB := newTestHost(t)
	connectHosts(t, hostA, hostB)

	// Small chunk size forces several round-trip chunks for a modest file.
	_, handleA, _ := startBehaviour(t, hostA, 8)
	_, handleB, busB := startBehaviour(t, hostB, 8)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	srcPath := writeRandomFile(t, srcDir, "payload.bin", 200)

	sub := busB.Subscribe()
	defer sub.Close()

	sendID, err := handleA.Send(hostB.ID(), srcPath)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var recvID uint64
	select {
	case ev := <-sub.Out():
		out := ev.Payload.(OutEvent)
		if out.IncomingFile == nil {
			t.Fatalf("expected IncomingFile event, got %+v", out)
		}
		if out.IncomingFile.FileName != "payload.bin" {
			t.Fatalf("unexpected file name %q", out.IncomingFile.FileName)
		}
		recvID = out.IncomingFile.RecvID
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for IncomingFile")
	}

	if err := handleB.AcceptFile(recvID, dstDir); err != nil {
		t.Fatalf("AcceptFile: %v", err)
	}

	waitForRecvFinished(t, sub, recvID)

	dstPath := filepath.Join(dstDir, "payload.bin")
	if hashFile(t, srcPath) != hashFile(t, dstPath) {
		t.Fatal("received file does not match source")
	}

	pending := handleA.ListPendingSend()
	for _, s := range pending {
		if s.SendID == sendID {
			t.Fatal("expected send record to be cleared after completion")
		}
	}
}

func waitForRecvFinished(t *testing.T, sub *swarm.Subscription, recvID uint64) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub.Out():
			out, ok := ev.Payload.(OutEvent)
			if !ok {
				continue
			}
			if out.RecvProgressed != nil && out.RecvProgressed.RecvID == recvID && out.RecvProgressed.Finished {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for RecvProgressed(finished)")
		}
	}
}

// TestCancelOneOfMany matches seed scenario 4: two concurrent sends to the
// same peer, one cancelled mid-flight, the other completes untouched.
func TestCancelOneOfMany(t *testing.T) {
	hostA := newTestHost(t)
	hostB := newTestHost(t)
	connectHosts(t, hostA, hostB)

	_, handleA, busA := startBehaviour(t, hostA, 8)
	_, handleB, busB := startBehaviour(t, hostB, 8)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	pathKeep := writeRandomFile(t, srcDir, "keep.bin", 200)
	pathDrop := writeRandomFile(t, srcDir, "drop.bin", 200)

	subA := busA.Subscribe()
	defer subA.Close()
	subB := busB.Subscribe()
	defer subB.Close()

	sendIDKeep, err := handleA.Send(hostB.ID(), pathKeep)
	if err != nil {
		t.Fatalf("Send(keep): %v", err)
	}
	sendIDDrop, err := handleA.Send(hostB.ID(), pathDrop)
	if err != nil {
		t.Fatalf("Send(drop): %v", err)
	}
	if sendIDDrop <= sendIDKeep {
		t.Fatalf("expected monotonically increasing send ids, got %d then %d", sendIDKeep, sendIDDrop)
	}

	recvIDs := map[string]uint64{}
	for len(recvIDs) < 2 {
		select {
		case ev := <-subB.Out():
			out := ev.Payload.(OutEvent)
			if out.IncomingFile != nil {
				recvIDs[out.IncomingFile.FileName] = out.IncomingFile.RecvID
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for both IncomingFile events, got %v", recvIDs)
		}
	}

	if err := handleA.CancelSend(sendIDDrop); err != nil {
		t.Fatalf("CancelSend: %v", err)
	}

	if err := handleB.AcceptFile(recvIDs["keep.bin"], dstDir); err != nil {
		t.Fatalf("AcceptFile(keep): %v", err)
	}
	waitForRecvFinished(t, subB, recvIDs["keep.bin"])

	if hashFile(t, pathKeep) != hashFile(t, filepath.Join(dstDir, "keep.bin")) {
		t.Fatal("kept transfer does not match source")
	}

	for _, s := range handleA.ListPendingSend() {
		if s.SendID == sendIDDrop {
			t.Fatal("expected cancelled send to be removed from pending sends")
		}
	}
}

// TestReceiverSideCancel matches seed scenario 5: the receiver cancels
// before accepting, and the sender observes its send record cleared.
func TestReceiverSideCancel(t *testing.T) {
	hostA := newTestHost(t)
	hostB := newTestHost(t)
	connectHosts(t, hostA, hostB)

	_, handleA, _ := startBehaviour(t, hostA, 8)
	_, handleB, busB := startBehaviour(t, hostB, 8)

	srcDir := t.TempDir()
	srcPath := writeRandomFile(t, srcDir, "unwanted.bin", 64)

	subB := busB.Subscribe()
	defer subB.Close()

	sendID, err := handleA.Send(hostB.ID(), srcPath)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var recvID uint64
	select {
	case ev := <-subB.Out():
		out := ev.Payload.(OutEvent)
		if out.IncomingFile == nil {
			t.Fatalf("expected IncomingFile event, got %+v", out)
		}
		recvID = out.IncomingFile.RecvID
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for IncomingFile")
	}

	if err := handleB.CancelRecv(recvID); err != nil {
		t.Fatalf("CancelRecv: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		pending := handleA.ListPendingSend()
		found := false
		for _, s := range pending {
			if s.SendID == sendID {
				found = true
			}
		}
		if !found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for sender to clear cancelled send")
		}
		time.Sleep(20 * time.Millisecond)
	}

	for _, r := range handleB.ListPendingRecv() {
		if r.RecvID == recvID {
			t.Fatal("expected cancelled recv to be removed from pending recvs")
		}
	}
}

// TestConnectionClosedEvictsSendAndRecvRecords matches spec.md's lifecycle
// rule that records die on explicit cancel "or underlying connection
// closure": neither side ever sends cancel here, the connection just drops.
func TestConnectionClosedEvictsSendAndRecvRecords(t *testing.T) {
	hostA := newTestHost(t)
	hostB := newTestHost(t)
	connectHosts(t, hostA, hostB)

	_, handleA, busA := startBehaviour(t, hostA, 8)
	_, handleB, busB := startBehaviour(t, hostB, 8)

	srcDir := t.TempDir()
	srcPath := writeRandomFile(t, srcDir, "orphaned.bin", 200)

	subA := busA.Subscribe()
	defer subA.Close()
	subB := busB.Subscribe()
	defer subB.Close()

	sendID, err := handleA.Send(hostB.ID(), srcPath)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var recvID uint64
	select {
	case ev := <-subB.Out():
		out := ev.Payload.(OutEvent)
		if out.IncomingFile == nil {
			t.Fatalf("expected IncomingFile event, got %+v", out)
		}
		recvID = out.IncomingFile.RecvID
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for IncomingFile")
	}

	if err := hostA.Network().ClosePeer(hostB.ID()); err != nil {
		t.Fatalf("closing peer: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		sendGone, recvGone := true, true
		for _, s := range handleA.ListPendingSend() {
			if s.SendID == sendID {
				sendGone = false
			}
		}
		for _, r := range handleB.ListPendingRecv() {
			if r.RecvID == recvID {
				recvGone = false
			}
		}
		if sendGone && recvGone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for send/recv records to be purged after disconnect")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
