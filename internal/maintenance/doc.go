// Package maintenance runs the serialized catalog upkeep operations: the
// mark phase (begin-scan plus a full walk), the sweep phase, and on-demand
// entry removal with trash relocation. One operation runs at a time; the
// mark and sweep phases are split on purpose so a sweep never races a walk
// still in flight.
package maintenance
