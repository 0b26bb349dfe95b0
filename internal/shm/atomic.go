package shm

import "sync/atomic"

func storeMagic(addr *uint32, v uint32) { atomic.StoreUint32(addr, v) }
func loadMagic(addr *uint32) uint32     { return atomic.LoadUint32(addr) }
