package ecs

// Go has no variadic generics, so views are fixed-arity helpers up to the
// 3-component queries the render-extraction systems need (entity render
// records join transform, mesh and material components). This mirrors the
// other-pack Gekko ECS's MakeQuery2-style helpers, generalized to a
// dedicated View1/View2/View3 family with an explicit Each callback in
// place of Gekko's bool-returning Map.

// View1 iterates every entity owning a T1 component.
type View1[T1 any] struct {
	w *World
}

// Query1 returns a view over every entity with a T1 component.
func Query1[T1 any](w *World) View1[T1] { return View1[T1]{w: w} }

// Each calls fn for every (Entity, *T1). Iteration order is the dense
// array's packed order, not entity creation order.
func (v View1[T1]) Each(fn func(e Entity, c1 *T1)) {
	s1, ok := storageRaw[T1](v.w)
	if !ok {
		return
	}
	v.w.mu.RLock()
	defer v.w.mu.RUnlock()
	s1.Each(func(idx uint32, c1 *T1) {
		fn(v.w.entityFor(idx), c1)
	})
}

// View2 iterates the intersection of entities owning both T1 and T2.
type View2[T1, T2 any] struct {
	w *World
}

// Query2 returns a view over the intersection of T1 and T2 owners.
func Query2[T1, T2 any](w *World) View2[T1, T2] { return View2[T1, T2]{w: w} }

// Each calls fn for every (Entity, *T1, *T2) where both components are
// present. Iterates the smaller of the two dense sets to keep the
// intersection cheap.
func (v View2[T1, T2]) Each(fn func(e Entity, c1 *T1, c2 *T2)) {
	s1, ok1 := storageRaw[T1](v.w)
	s2, ok2 := storageRaw[T2](v.w)
	if !ok1 || !ok2 {
		return
	}
	v.w.mu.RLock()
	defer v.w.mu.RUnlock()

	if s1.Len() <= s2.Len() {
		s1.Each(func(idx uint32, c1 *T1) {
			if c2 := s2.Get(idx); c2 != nil {
				fn(v.w.entityFor(idx), c1, c2)
			}
		})
		return
	}
	s2.Each(func(idx uint32, c2 *T2) {
		if c1 := s1.Get(idx); c1 != nil {
			fn(v.w.entityFor(idx), c1, c2)
		}
	})
}

// View3 iterates the intersection of entities owning T1, T2 and T3.
type View3[T1, T2, T3 any] struct {
	w *World
}

// Query3 returns a view over the intersection of T1, T2 and T3 owners.
func Query3[T1, T2, T3 any](w *World) View3[T1, T2, T3] { return View3[T1, T2, T3]{w: w} }

// Each calls fn for every (Entity, *T1, *T2, *T3) where all three
// components are present.
func (v View3[T1, T2, T3]) Each(fn func(e Entity, c1 *T1, c2 *T2, c3 *T3)) {
	s1, ok1 := storageRaw[T1](v.w)
	s2, ok2 := storageRaw[T2](v.w)
	s3, ok3 := storageRaw[T3](v.w)
	if !ok1 || !ok2 || !ok3 {
		return
	}
	v.w.mu.RLock()
	defer v.w.mu.RUnlock()

	s1.Each(func(idx uint32, c1 *T1) {
		c2 := s2.Get(idx)
		if c2 == nil {
			return
		}
		c3 := s3.Get(idx)
		if c3 == nil {
			return
		}
		fn(v.w.entityFor(idx), c1, c2, c3)
	})
}
