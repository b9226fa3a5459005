package vm

import (
	"sync"
)

// PID stands for Process ID.
type PID uint32

// A Page is an entry in the page table, maintaining the information about how
// to translate a virtual address to a physical address.
type Page struct {
	PID      PID
	PAddr    uint64
	VAddr    uint64
	PageSize uint64
	Valid    bool
	DeviceID uint64
}

// Contains tells if the virtual address falls in the page.
func (p Page) Contains(vAddr uint64) bool {
	return vAddr >= p.VAddr && vAddr < p.VAddr+p.PageSize
}

// A PageTable holds the a list of pages.
type PageTable interface {
	Insert(page Page)
	Remove(pid PID, vAddr uint64)
	Find(pid PID, vAddr uint64) (Page, bool)
	Update(page Page)
}

// NewPageTable creates a new PageTable.
func NewPageTable(log2PageSize uint64) PageTable {
	return &pageTableImpl{
		log2PageSize: log2PageSize,
		tables:       make(map[PID]map[uint64]Page),
	}
}

// pageTableImpl keeps one page map per process, keyed by the page-aligned
// virtual address.
type pageTableImpl struct {
	sync.Mutex
	log2PageSize uint64
	tables       map[PID]map[uint64]Page
}

func (pt *pageTableImpl) table(pid PID) map[uint64]Page {
	table, found := pt.tables[pid]
	if !found {
		table = make(map[uint64]Page)
		pt.tables[pid] = table
	}

	return table
}

func (pt *pageTableImpl) alignToPage(addr uint64) uint64 {
	return (addr >> pt.log2PageSize) << pt.log2PageSize
}

// Insert put a new page into the PageTable
func (pt *pageTableImpl) Insert(page Page) {
	pt.Lock()
	defer pt.Unlock()

	if page.VAddr != pt.alignToPage(page.VAddr) {
		panic("page is not aligned")
	}

	table := pt.table(page.PID)
	if _, found := table[page.VAddr]; found {
		panic("page exist")
	}

	table[page.VAddr] = page
}

// Remove removes the entry in the page table that contains the target
// address.
func (pt *pageTableImpl) Remove(pid PID, vAddr uint64) {
	pt.Lock()
	defer pt.Unlock()

	table := pt.table(pid)
	vAddr = pt.alignToPage(vAddr)

	pageMustExist(table, vAddr)
	delete(table, vAddr)
}

// Find returns the page that contains the given virtual address. The bool
// return value invicates if the page is found or not.
func (pt *pageTableImpl) Find(pid PID, vAddr uint64) (Page, bool) {
	pt.Lock()
	defer pt.Unlock()

	page, found := pt.table(pid)[pt.alignToPage(vAddr)]

	return page, found
}

// Update changes the field of an existing page. The PID and the VAddr field
// will be used to locate the page to update.
func (pt *pageTableImpl) Update(page Page) {
	pt.Lock()
	defer pt.Unlock()

	table := pt.table(page.PID)
	pageMustExist(table, page.VAddr)
	table[page.VAddr] = page
}

func pageMustExist(table map[uint64]Page, vAddr uint64) {
	if _, found := table[vAddr]; !found {
		panic("page does not exist")
	}
}
