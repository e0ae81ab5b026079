package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"receipt2ledger/pkg/receipt"
	"receipt2ledger/pkg/seen"
)

// fakeProcessor treats trimmed file contents as the transaction number; "bad" fails.
type fakeProcessor struct{}

func (fakeProcessor) Process(_ context.Context, raw []byte) (*receipt.Result, error) {
	txn := strings.TrimSpace(string(raw))
	if txn == "bad" {
		return nil, &receipt.ExtractionError{Field: receipt.FieldAmount}
	}
	return &receipt.Result{
		Transaction:  &receipt.ExtractedTransaction{TransactionNumber: txn, Amount: "1.00"},
		CurrencyCode: "USD",
	}, nil
}

type memRecorder struct {
	mu       sync.Mutex
	txns     map[string]bool
	recorded []string
	failures []string
}

func newMemRecorder() *memRecorder { return &memRecorder{txns: map[string]bool{}} }

func (m *memRecorder) Record(_ context.Context, name string, _ []byte, res *receipt.Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, name)
	txn := res.Transaction.TransactionNumber
	dup := m.txns[txn]
	m.txns[txn] = true
	return dup, nil
}

func (m *memRecorder) RecordFailure(_ context.Context, name string, _ []byte, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, name)
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

var _ = Describe("Watcher", func() {
	var (
		dir, processed string
		idx            *seen.Index
		rec            *memRecorder
		w              *Watcher
	)

	write := func(name, content string) {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		tmp := GinkgoT().TempDir()
		dir = filepath.Join(tmp, "inbox")
		processed = filepath.Join(tmp, "processed")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		var err error
		idx, err = seen.Open(filepath.Join(tmp, "seen.db"))
		Expect(err).NotTo(HaveOccurred())
		rec = newMemRecorder()
		w = New(Options{Dir: dir, ProcessedDir: processed, Workers: 2, Debounce: 50 * time.Millisecond},
			fakeProcessor{}, idx, rec, zerolog.Nop())
	})

	AfterEach(func() {
		idx.Close()
	})

	Describe("Scan", func() {
		BeforeEach(func() {
			write("a.png", "1111111111")
			write("b.jpg", "2222222222")
			write("c.png", "bad")
			write("notes.txt", "3333333333")
			write("a.ocr.png", "4444444444")
		})

		It("processes supported images and moves them", func() {
			Expect(w.Scan(context.Background())).To(Succeed())
			Expect(w.Stats()).To(Equal(Stats{Processed: 2, Failed: 1}))
			Expect(rec.recorded).To(ConsistOf("a.png", "b.jpg"))
			Expect(rec.failures).To(ConsistOf("c.png"))
			Expect(filepath.Join(processed, "a.png")).To(BeAnExistingFile())
			Expect(filepath.Join(dir, "a.png")).NotTo(BeAnExistingFile())
			Expect(filepath.Join(dir, "c.png")).To(BeAnExistingFile())
		})

		It("skips content it has already seen", func() {
			Expect(w.Scan(context.Background())).To(Succeed())
			write("a-copy.png", "1111111111")
			Expect(w.Scan(context.Background())).To(Succeed())
			Expect(w.Stats().Skipped).To(Equal(int64(2))) // a-copy and the failed c.png
			Expect(rec.recorded).To(HaveLen(2))
		})

		It("retries failed files when asked", func() {
			Expect(w.Scan(context.Background())).To(Succeed())
			retry := New(Options{Dir: dir, RetryFailed: true}, fakeProcessor{}, idx, rec, zerolog.Nop())
			Expect(retry.Scan(context.Background())).To(Succeed())
			Expect(retry.Stats().Failed).To(Equal(int64(1)))
			Expect(rec.failures).To(HaveLen(2))
		})
	})

	When("the same transaction arrives in different files", func() {
		It("counts the second as a duplicate", func() {
			write("one.png", "5555555555")
			Expect(w.Scan(context.Background())).To(Succeed())
			write("two.png", "5555555555 ")
			Expect(w.Scan(context.Background())).To(Succeed())
			Expect(w.Stats().Duplicates).To(Equal(int64(1)))
		})
	})

	Describe("Watch", func() {
		It("picks up files created after start", func() {
			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- w.Watch(ctx) }()

			// give fsnotify time to register the directory
			time.Sleep(100 * time.Millisecond)
			write("late.png", "6666666666")

			Eventually(rec.count, 3*time.Second, 20*time.Millisecond).Should(Equal(1))
			cancel()
			Eventually(errCh, 2*time.Second).Should(Receive(BeNil()))
			Expect(filepath.Join(processed, "late.png")).To(BeAnExistingFile())
		})
	})
})
