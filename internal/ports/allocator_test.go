package ports

import (
	"errors"
	"net"
	"strconv"
	"testing"
)

func TestProjectBasePortIsDeterministic(t *testing.T) {
	a := NewAllocator(42000, 1000, 20)

	first := a.ProjectBasePort("/home/dev/webapp")
	second := a.ProjectBasePort("/home/dev/webapp")
	if first != second {
		t.Errorf("ProjectBasePort not deterministic: %d vs %d", first, second)
	}
	if first < 42000 || first >= 42000+20*1000 {
		t.Errorf("ProjectBasePort = %d, outside usable range", first)
	}
	if (first-42000)%1000 != 0 {
		t.Errorf("ProjectBasePort = %d, not block-aligned", first)
	}
}

func TestPortForVariant(t *testing.T) {
	a := NewAllocator(42000, 1000, 20)
	base := a.ProjectBasePort("key")

	tests := []struct {
		variantID string
		want      int
		wantErr   error
	}{
		{"001", base + 1, nil},
		{"042", base + 42, nil},
		{"999", base + 999, nil},
		{"000", 0, ErrPortOutOfRange},
		{"abc", 0, nil}, // parse error, checked separately
	}

	for _, tt := range tests {
		t.Run(tt.variantID, func(t *testing.T) {
			got, err := a.PortForVariant("key", tt.variantID)
			if tt.variantID == "abc" {
				if err == nil {
					t.Fatal("PortForVariant(abc) succeeded, want parse error")
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("PortForVariant() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PortForVariant() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PortForVariant() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPortForVariantOutsideBlock(t *testing.T) {
	a := NewAllocator(42000, 100, 20)

	if _, err := a.PortForVariant("key", "100"); !errors.Is(err, ErrPortOutOfRange) {
		t.Errorf("PortForVariant(100) with block size 100 error = %v, want ErrPortOutOfRange", err)
	}
}

func TestAllocateFallsBackWhenPreferredTaken(t *testing.T) {
	a := NewAllocator(42000, 1000, 20)

	preferred, err := a.PortForVariant("fallback-test", "001")
	if err != nil {
		t.Fatalf("PortForVariant() error = %v", err)
	}

	// Occupy the preferred port.
	blocker, err := net.Listen("tcp", addrFor(preferred))
	if err != nil {
		t.Skipf("preferred port %d not bindable in this environment: %v", preferred, err)
	}
	defer blocker.Close()

	port, err := a.Allocate("fallback-test", "001")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if port == preferred {
		t.Errorf("Allocate() returned occupied preferred port %d", port)
	}
	base := a.ProjectBasePort("fallback-test")
	if port <= base || port >= base+a.BlockSize() {
		t.Errorf("Allocate() = %d, outside project block starting at %d", port, base)
	}
}

func TestAllocateWithReservationHoldsPort(t *testing.T) {
	a := NewAllocator(42000, 1000, 20)

	first, err := a.AllocateWithReservation("reservation-test", "001")
	if err != nil {
		t.Fatalf("first AllocateWithReservation() error = %v", err)
	}
	defer first.Release()

	// While held, a second reservation must land on a different port.
	second, err := a.AllocateWithReservation("reservation-test", "001")
	if err != nil {
		t.Fatalf("second AllocateWithReservation() error = %v", err)
	}
	if second.Port() == first.Port() {
		t.Errorf("second reservation got held port %d", first.Port())
	}
	second.Release()

	// After release, the preferred port is claimable again.
	preferred := first.Port()
	first.Release()
	third, err := a.AllocateWithReservation("reservation-test", "001")
	if err != nil {
		t.Fatalf("third AllocateWithReservation() error = %v", err)
	}
	defer third.Release()
	if third.Port() != preferred {
		t.Errorf("after release, got port %d, want preferred %d", third.Port(), preferred)
	}
}

func TestReservationClosesAcceptedConnections(t *testing.T) {
	a := NewAllocator(42000, 1000, 20)
	r, err := a.AllocateWithReservation("conn-close-test", "002")
	if err != nil {
		t.Fatalf("AllocateWithReservation() error = %v", err)
	}

	// Connect to the placeholder listener, as an eager probe would.
	conn, err := net.Dial("tcp", addrFor(r.Port()))
	if err != nil {
		t.Fatalf("dial reservation: %v", err)
	}
	defer conn.Close()

	r.Release()
	r.Release() // idempotent

	// The port must be bindable after release.
	ln, err := net.Listen("tcp", addrFor(r.Port()))
	if err != nil {
		t.Fatalf("port %d not bindable after release: %v", r.Port(), err)
	}
	ln.Close()
}

func addrFor(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}
