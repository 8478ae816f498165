// Package phase enumerates the units of collector work that are timed
// individually.
package phase

import "fmt"

// Phase identifies a unit of collector work.
type Phase int

// Invalid is the "no phase" sentinel.
const Invalid Phase = -1

const (
	TotalPauseGross Phase = iota
	TotalPause

	InitMarkGross
	InitMark
	MakeParsable
	ClearLiveness
	ScanRoots
	ResizeTLABs

	FinalMarkGross
	FinalMark
	UpdateRoots
	FinishQueues
	WeakRefs
	Purge
	PrepareEvac
	RecycleRegions
	InitEvac

	InitUpdateRefsGross
	InitUpdateRefs
	FinalUpdateRefsGross
	FinalUpdateRefs
	FinalUpdateRefsRoots
	FinalUpdateRefsRecycle

	DegenGCGross
	DegenGC
	DegenGCUpdateRoots

	InitTraversalGCGross
	InitTraversalGC
	InitTraversalGCWork
	FinalTraversalGCGross
	FinalTraversalGC
	FinalTraversalGCWork
	FinalTraversalUpdateRoots

	FullGCGross
	FullGC
	FullGCHeapDump
	FullGCPrepare
	FullGCRoots
	FullGCMark
	FullGCCalculateAddresses
	FullGCAdjustPointers
	FullGCCopyObjects
	FullGCResizeTLABs

	ConcReset
	ConcMark
	ConcPreclean
	ConcEvac
	ConcUpdateRefs
	ConcCleanup
	ConcTraversal
	ConcUncommit

	NumPhases
)

type descriptor struct {
	key   string
	title string
}

var descriptors = [NumPhases]descriptor{
	TotalPauseGross: {"total_pause_gross", "Total Pauses (G)"},
	TotalPause:      {"total_pause", "Total Pauses (N)"},

	InitMarkGross: {"init_mark_gross", "Pause Init Mark (G)"},
	InitMark:      {"init_mark", "Pause Init Mark (N)"},
	MakeParsable:  {"make_parsable", "  Make Parsable"},
	ClearLiveness: {"clear_liveness", "  Clear Liveness"},
	ScanRoots:     {"scan_roots", "  Scan Roots"},
	ResizeTLABs:   {"resize_tlabs", "  Resize TLABs"},

	FinalMarkGross: {"final_mark_gross", "Pause Final Mark (G)"},
	FinalMark:      {"final_mark", "Pause Final Mark (N)"},
	UpdateRoots:    {"update_roots", "  Update Roots"},
	FinishQueues:   {"finish_queues", "  Finish Queues"},
	WeakRefs:       {"weakrefs", "  Weak References"},
	Purge:          {"purge", "  System Purge"},
	PrepareEvac:    {"prepare_evac", "  Prepare Evacuation"},
	RecycleRegions: {"recycle_regions", "  Recycle"},
	InitEvac:       {"init_evac", "  Initial Evacuation"},

	InitUpdateRefsGross:    {"init_update_refs_gross", "Pause Init  Update Refs (G)"},
	InitUpdateRefs:         {"init_update_refs", "Pause Init  Update Refs (N)"},
	FinalUpdateRefsGross:   {"final_update_refs_gross", "Pause Final Update Refs (G)"},
	FinalUpdateRefs:        {"final_update_refs", "Pause Final Update Refs (N)"},
	FinalUpdateRefsRoots:   {"final_update_refs_roots", "  Update Roots"},
	FinalUpdateRefsRecycle: {"final_update_refs_recycle", "  Recycle"},

	DegenGCGross:       {"degen_gc_gross", "Pause Degenerated GC (G)"},
	DegenGC:            {"degen_gc", "Pause Degenerated GC (N)"},
	DegenGCUpdateRoots: {"degen_gc_update_roots", "  Degen Update Roots"},

	InitTraversalGCGross:      {"init_traversal_gc_gross", "Pause Init Traversal (G)"},
	InitTraversalGC:           {"init_traversal_gc", "Pause Init Traversal (N)"},
	InitTraversalGCWork:       {"init_traversal_gc_work", "  Work"},
	FinalTraversalGCGross:     {"final_traversal_gc_gross", "Pause Final Traversal (G)"},
	FinalTraversalGC:          {"final_traversal_gc", "Pause Final Traversal (N)"},
	FinalTraversalGCWork:      {"final_traversal_gc_work", "  Work"},
	FinalTraversalUpdateRoots: {"final_traversal_update_roots", "  Update Roots"},

	FullGCGross:              {"full_gc_gross", "Pause Full GC (G)"},
	FullGC:                   {"full_gc", "Pause Full GC (N)"},
	FullGCHeapDump:           {"full_gc_heapdumps", "  Heap Dumps"},
	FullGCPrepare:            {"full_gc_prepare", "  Prepare"},
	FullGCRoots:              {"full_gc_roots", "  Roots"},
	FullGCMark:               {"full_gc_mark", "  Mark"},
	FullGCCalculateAddresses: {"full_gc_calculate_addresses", "  Calculate Addresses"},
	FullGCAdjustPointers:     {"full_gc_adjust_pointers", "  Adjust Pointers"},
	FullGCCopyObjects:        {"full_gc_copy_objects", "  Copy Objects"},
	FullGCResizeTLABs:        {"full_gc_resize_tlabs", "  Resize TLABs"},

	ConcReset:      {"conc_reset", "Concurrent Reset"},
	ConcMark:       {"conc_mark", "Concurrent Marking"},
	ConcPreclean:   {"conc_preclean", "Concurrent Precleaning"},
	ConcEvac:       {"conc_evac", "Concurrent Evacuation"},
	ConcUpdateRefs: {"conc_update_refs", "Concurrent Update Refs"},
	ConcCleanup:    {"conc_cleanup", "Concurrent Cleanup"},
	ConcTraversal:  {"conc_traversal", "Concurrent Traversal"},
	ConcUncommit:   {"conc_uncommit", "Concurrent Uncommit"},
}

// Valid reports whether p lies within the declared range. The Invalid
// sentinel and anything outside [0, NumPhases) are not valid.
func Valid(p Phase) bool {
	return p >= 0 && p < NumPhases
}

// IsRootWork reports whether p is one of the phases that scan or update
// the root set.
func IsRootWork(p Phase) bool {
	switch p {
	case ScanRoots,
		UpdateRoots,
		InitEvac,
		FinalUpdateRefsRoots,
		DegenGCUpdateRoots,
		InitTraversalGCWork,
		FinalTraversalGCWork,
		FinalTraversalUpdateRoots,
		FullGCRoots:
		return true
	default:
		return false
	}
}

// Key returns the stable identifier used in configs and reports.
func (p Phase) Key() string {
	if !Valid(p) {
		return "invalid"
	}
	return descriptors[p].key
}

// String returns the indented human title used in timing tables.
func (p Phase) String() string {
	if !Valid(p) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return descriptors[p].title
}

// Parse looks a phase up by its key.
func Parse(key string) (Phase, error) {
	for i := range descriptors {
		if descriptors[i].key == key {
			return Phase(i), nil
		}
	}
	return Invalid, fmt.Errorf("unknown phase: %q", key)
}

// All returns every valid phase in declaration order.
func All() []Phase {
	out := make([]Phase, NumPhases)
	for i := range out {
		out[i] = Phase(i)
	}
	return out
}
