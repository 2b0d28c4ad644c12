package signer

import "github.com/AlexZinkM/cold-signer/internal/model"

// History returns the audit log in order.
func (d *Device) History() ([]model.Entry, error) {
	return d.log.Entries()
}

// HistoryEntry returns one audit log entry.
func (d *Device) HistoryEntry(order uint32) (model.Entry, error) {
	return d.log.Entry(order)
}

// ClearHistory truncates the audit log to a single marker entry.
func (d *Device) ClearHistory() error {
	if err := d.log.Clear(); err != nil {
		return err
	}
	d.logger.Info("history cleared")
	return nil
}
