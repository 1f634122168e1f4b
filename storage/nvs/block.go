package nvs

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"sync"

	"biketrack-go/errcode"
)

// BlockDevice is raw flash (machine.Flash on TinyGo targets). Offsets are
// relative to the start of the device.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	WriteBlockSize() int64
	EraseBlockSize() int64
	EraseBlocks(start, length int64) error
}

const (
	blockMagic  uint32 = 0x4E565331 // "NVS1"
	blockHeader        = 16         // magic, seq, len, crc32
)

// Block is a Store kept as one JSON image in two alternating flash slots.
// Every write goes to the older slot, so a torn write leaves the previous
// image readable.
type Block struct {
	dev      BlockDevice
	slotSize int64
	mu       sync.Mutex
	seq      uint32
	active   int // slot holding seq; -1 when empty
	data     map[string]map[string]string
}

// OpenBlock mounts the store on the first 2*slotBlocks erase blocks of dev.
func OpenBlock(dev BlockDevice, slotBlocks int64) (*Block, error) {
	if slotBlocks <= 0 {
		slotBlocks = 1
	}
	b := &Block{
		dev:      dev,
		slotSize: slotBlocks * dev.EraseBlockSize(),
		active:   -1,
		data:     map[string]map[string]string{},
	}
	if 2*b.slotSize > dev.Size() {
		return nil, &errcode.E{C: errcode.OutOfRange, Op: "nvs.open", Msg: "device too small"}
	}
	for slot := 0; slot < 2; slot++ {
		seq, data, ok := b.readSlot(slot)
		if ok && (b.active < 0 || seq > b.seq) {
			b.seq, b.active, b.data = seq, slot, data
		}
	}
	return b, nil
}

func (b *Block) readSlot(slot int) (uint32, map[string]map[string]string, bool) {
	off := int64(slot) * b.slotSize
	var hdr [blockHeader]byte
	if _, err := b.dev.ReadAt(hdr[:], off); err != nil {
		return 0, nil, false
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != blockMagic {
		return 0, nil, false
	}
	seq := binary.LittleEndian.Uint32(hdr[4:8])
	n := int64(binary.LittleEndian.Uint32(hdr[8:12]))
	if n > b.slotSize-blockHeader {
		return 0, nil, false
	}
	raw := make([]byte, n)
	if _, err := b.dev.ReadAt(raw, off+blockHeader); err != nil {
		return 0, nil, false
	}
	if crc32.ChecksumIEEE(raw) != binary.LittleEndian.Uint32(hdr[12:16]) {
		return 0, nil, false
	}
	data := map[string]map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, nil, false
	}
	return seq, data, true
}

func (b *Block) Get(ns, key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[ns][key]
	return v, ok
}

func (b *Block) Put(ns, key, val string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bucket := b.data[ns]
	if bucket == nil {
		bucket = map[string]string{}
		b.data[ns] = bucket
	}
	prev, had := bucket[key]
	if had && prev == val {
		return nil
	}
	bucket[key] = val
	if err := b.flushLocked(); err != nil {
		if had {
			bucket[key] = prev
		} else {
			delete(bucket, key)
		}
		return err
	}
	return nil
}

func (b *Block) Clear(ns string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, had := b.data[ns]
	if !had {
		return nil
	}
	delete(b.data, ns)
	if err := b.flushLocked(); err != nil {
		b.data[ns] = prev
		return err
	}
	return nil
}

func (b *Block) flushLocked() error {
	raw, err := json.Marshal(b.data)
	if err != nil {
		return err
	}
	if int64(len(raw)) > b.slotSize-blockHeader {
		return &errcode.E{C: errcode.StorageFailed, Op: "nvs.flush", Msg: "image too large"}
	}
	slot := 0
	if b.active == 0 {
		slot = 1
	}
	seq := b.seq + 1

	img := make([]byte, blockHeader+len(raw))
	binary.LittleEndian.PutUint32(img[0:4], blockMagic)
	binary.LittleEndian.PutUint32(img[4:8], seq)
	binary.LittleEndian.PutUint32(img[8:12], uint32(len(raw)))
	binary.LittleEndian.PutUint32(img[12:16], crc32.ChecksumIEEE(raw))
	copy(img[blockHeader:], raw)
	if wb := b.dev.WriteBlockSize(); wb > 1 {
		if rem := int64(len(img)) % wb; rem != 0 {
			img = append(img, make([]byte, wb-rem)...)
		}
	}

	off := int64(slot) * b.slotSize
	eb := b.dev.EraseBlockSize()
	if err := b.dev.EraseBlocks(off/eb, b.slotSize/eb); err != nil {
		return errcode.Wrap(errcode.StorageFailed, "nvs.erase", err)
	}
	if _, err := b.dev.WriteAt(img, off); err != nil {
		return errcode.Wrap(errcode.StorageFailed, "nvs.write", err)
	}
	b.seq, b.active = seq, slot
	return nil
}
