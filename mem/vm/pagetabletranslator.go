package vm

import (
	"github.com/sarchlab/copyengine/sim"
)

// HookPosTranslationDone marks a translation finishing. The item is the
// translation.
var HookPosTranslationDone = &sim.HookPos{Name: "Translation Done"}

type translationDoneEvent struct {
	*sim.EventBase

	translation *Translation
	client      TranslationClient
}

// PageTableTranslator walks a page table to translate addresses. A walk takes
// a fixed number of cycles. With zero latency, translations finish
// immediately.
type PageTableTranslator struct {
	sim.HookableBase

	name                string
	engine              sim.Engine
	freq                sim.Freq
	latency             int
	log2PageSize        uint64
	pageTable           PageTable
	autoPageAllocation  bool
	nextPAddr           uint64
	numTranslations     uint64
	numFaults           uint64
	pendingTranslations int
}

// Name returns the name of the translator.
func (t *PageTableTranslator) Name() string {
	return t.name
}

// StartTranslation looks up the page table. The result is available
// immediately if the walking latency is 0.
func (t *PageTableTranslator) StartTranslation(
	tr *Translation,
	client TranslationClient,
) bool {
	if t.latency == 0 {
		t.resolve(tr)
		return true
	}

	now := t.engine.CurrentTime()
	evt := &translationDoneEvent{
		EventBase: sim.NewEventBase(
			t.freq.NCyclesLater(t.latency, now), t),
		translation: tr,
		client:      client,
	}
	t.engine.Schedule(evt)
	t.pendingTranslations++

	return false
}

// Handle finishes a page walk.
func (t *PageTableTranslator) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *translationDoneEvent:
		t.pendingTranslations--
		t.resolve(e.translation)
		e.client.FinishTranslation(e.translation)
	default:
		panic("cannot handle event")
	}

	return nil
}

func (t *PageTableTranslator) resolve(tr *Translation) {
	t.numTranslations++

	page, found := t.pageTable.Find(tr.PID, tr.VAddr)
	if !found && t.autoPageAllocation {
		page = t.allocatePage(tr.PID, tr.VAddr)
		found = true
	}

	if !found || !page.Valid {
		t.numFaults++
		tr.Err = faultError(tr)
	} else {
		tr.Page = page
		tr.PAddr = page.PAddr + tr.VAddr - page.VAddr
	}

	t.InvokeHook(sim.HookCtx{
		Domain: t,
		Pos:    HookPosTranslationDone,
		Item:   tr,
	})
}

func (t *PageTableTranslator) allocatePage(pid PID, vAddr uint64) Page {
	pageSize := uint64(1) << t.log2PageSize
	page := Page{
		PID:      pid,
		VAddr:    vAddr &^ (pageSize - 1),
		PAddr:    t.nextPAddr,
		PageSize: pageSize,
		Valid:    true,
	}
	t.nextPAddr += pageSize

	t.pageTable.Insert(page)

	return page
}

// NumTranslations returns how many translations have been resolved.
func (t *PageTableTranslator) NumTranslations() uint64 {
	return t.numTranslations
}

// NumFaults returns how many translations have faulted.
func (t *PageTableTranslator) NumFaults() uint64 {
	return t.numFaults
}

// NumPending returns how many page walks are in progress.
func (t *PageTableTranslator) NumPending() int {
	return t.pendingTranslations
}
