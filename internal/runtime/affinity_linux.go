//go:build linux

// Package runtimex provides optional CPU affinity helpers (best-effort).
// The forwarder runs inside someone else's process, so the Linux build is
// a no-op: pinning the host runtime's threads from a guest agent is not
// acceptable. The API stays so embedders with a dedicated sidecar build
// can enable real affinity without changing call sites.
package runtimex

// AffinitySpec describes the desired CPU set for the process or thread.
type AffinitySpec struct {
	CPUSet []int // CPU indices to allow
}

// ApplyProcessAffinity is a no-op in this build.
func ApplyProcessAffinity(_ AffinitySpec) error {
	return nil
}

// PinCurrentThreadToCPU is a no-op in this build.
func PinCurrentThreadToCPU(_ int) error {
	return nil
}
