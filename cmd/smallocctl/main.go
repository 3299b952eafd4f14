// Command smallocctl exercises the allocator from the outside, the way the
// teacher's tools/pools drove its pool sizing logic: a small standalone
// binary rather than a unit test, useful for eyeballing throughput and
// utilization.
package main

func main() {
	execute()
}
