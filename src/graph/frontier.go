package graph

import "sort"

// frontier tracks the graph's unreferenced tips, bucketed by layer. An id is
// a tip iff no stored event lists it as a parent. The structure is not
// self-locking; it is only touched under the Graph lock.
type frontier struct {
	buckets map[int]map[string]struct{}
	layers  map[string]int
}

func newFrontier() *frontier {
	return &frontier{
		buckets: make(map[int]map[string]struct{}),
		layers:  make(map[string]int),
	}
}

// add records id as a tip at the given layer.
func (f *frontier) add(id string, layer int) {
	bucket, ok := f.buckets[layer]
	if !ok {
		bucket = make(map[string]struct{})
		f.buckets[layer] = bucket
	}
	bucket[id] = struct{}{}
	f.layers[id] = layer
}

// remove drops id from whichever bucket it occupies. The id's layer is looked
// up, not scanned for. Empty buckets are dropped so lastLayer always reflects
// a populated layer.
func (f *frontier) remove(id string) {
	layer, ok := f.layers[id]
	if !ok {
		return
	}

	delete(f.layers, id)

	bucket := f.buckets[layer]
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(f.buckets, layer)
	}
}

// contains reports whether id is currently a tip.
func (f *frontier) contains(id string) bool {
	_, ok := f.layers[id]
	return ok
}

// tipsAtLayer returns the tips of a single layer, in lexical order.
func (f *frontier) tipsAtLayer(layer int) []string {
	bucket, ok := f.buckets[layer]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// lastLayer returns the highest populated layer.
func (f *frontier) lastLayer() (int, bool) {
	if len(f.buckets) == 0 {
		return 0, false
	}

	res := 0
	init := false
	for layer := range f.buckets {
		if !init || layer > res {
			res = layer
			init = true
		}
	}

	return res, true
}

// tips returns every tip across all layers, in lexical order.
func (f *frontier) tips() []string {
	ids := make([]string, 0, len(f.layers))
	for id := range f.layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// snapshot returns the full layer => tips mapping, with each bucket in
// lexical order.
func (f *frontier) snapshot() map[int][]string {
	res := make(map[int][]string, len(f.buckets))
	for layer := range f.buckets {
		res[layer] = f.tipsAtLayer(layer)
	}

	return res
}
