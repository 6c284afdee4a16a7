package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"raisemoney/core/types"
	"raisemoney/native/campaign"
)

var (
	campaignSequenceKey        = []byte("campaign/seq")
	campaignRecordPrefix       = []byte("campaign/record/")
	campaignContributionPrefix = []byte("campaign/contribution/")
	campaignBenefactorsPrefix  = []byte("campaign/benefactors/")
)

type storedCampaign struct {
	ID           uint64
	Beneficiary  [20]byte
	Target       *big.Int
	Raised       *big.Int
	CreatedAt    uint64
	DurationDays uint64
	Deadline     uint64
	Status       uint8
}

func campaignIDBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func campaignRecordKey(id uint64) []byte {
	return append(append([]byte(nil), campaignRecordPrefix...), campaignIDBytes(id)...)
}

func campaignContributionKey(id uint64, contributor types.Principal) []byte {
	key := append(append([]byte(nil), campaignContributionPrefix...), campaignIDBytes(id)...)
	return append(key, contributor[:]...)
}

func campaignBenefactorsKey(id uint64) []byte {
	return append(append([]byte(nil), campaignBenefactorsPrefix...), campaignIDBytes(id)...)
}

func campaignBenefactorKey(id, index uint64) []byte {
	key := append(campaignBenefactorsKey(id), '/')
	return append(key, campaignIDBytes(index)...)
}

func unixToStored(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func newStoredCampaign(c *campaign.Campaign) *storedCampaign {
	stored := &storedCampaign{
		ID:           c.ID,
		Beneficiary:  c.Beneficiary,
		Target:       big.NewInt(0),
		Raised:       big.NewInt(0),
		CreatedAt:    unixToStored(c.CreatedAt),
		DurationDays: uint64(c.DurationDays),
		Deadline:     unixToStored(c.Deadline),
		Status:       uint8(c.Status),
	}
	if c.Target != nil {
		stored.Target = new(big.Int).Set(c.Target)
	}
	if c.Raised != nil {
		stored.Raised = new(big.Int).Set(c.Raised)
	}
	return stored
}

func (s *storedCampaign) toCampaign() *campaign.Campaign {
	c := &campaign.Campaign{
		ID:           s.ID,
		Beneficiary:  types.Principal(s.Beneficiary),
		Target:       big.NewInt(0),
		Raised:       big.NewInt(0),
		CreatedAt:    int64(s.CreatedAt),
		DurationDays: uint32(s.DurationDays),
		Deadline:     int64(s.Deadline),
		Status:       campaign.SettlementStatus(s.Status),
	}
	if s.Target != nil {
		c.Target.Set(s.Target)
	}
	if s.Raised != nil {
		c.Raised.Set(s.Raised)
	}
	return c
}

// CampaignCount returns the number of identifiers allocated so far.
func (m *Manager) CampaignCount() (uint64, error) {
	var seq uint64
	if _, err := m.KVGet(campaignSequenceKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// CampaignNextID increments the campaign sequence and returns the new
// identifier.
func (m *Manager) CampaignNextID() (uint64, error) {
	seq, err := m.CampaignCount()
	if err != nil {
		return 0, err
	}
	seq++
	if err := m.KVPut(campaignSequenceKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// CampaignPut persists the campaign record.
func (m *Manager) CampaignPut(c *campaign.Campaign) error {
	if c == nil {
		return fmt.Errorf("campaign: nil record")
	}
	if c.ID == 0 {
		return fmt.Errorf("campaign: id must be set")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("campaign: invalid status %d", c.Status)
	}
	if c.Raised != nil && c.Raised.Sign() < 0 {
		return fmt.Errorf("campaign: negative raised amount")
	}
	return m.KVPut(campaignRecordKey(c.ID), newStoredCampaign(c))
}

// CampaignGet loads the campaign with the supplied identifier.
func (m *Manager) CampaignGet(id uint64) (*campaign.Campaign, bool, error) {
	stored := new(storedCampaign)
	ok, err := m.KVGet(campaignRecordKey(id), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toCampaign(), true, nil
}

// ContributionGet returns the tracked entry for contributor. The boolean
// reports whether an entry, possibly zero, exists.
func (m *Manager) ContributionGet(id uint64, contributor types.Principal) (*big.Int, bool, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(campaignContributionKey(id, contributor), amount)
	if err != nil || !ok {
		return nil, ok, err
	}
	return amount, true, nil
}

// ContributionPut stores the entry for contributor. Zero entries are kept.
func (m *Manager) ContributionPut(id uint64, contributor types.Principal, amount *big.Int) error {
	return m.writeBigInt(campaignContributionKey(id, contributor), amount)
}

// BenefactorsAppend records contributor at the end of the campaign's
// benefactor list. Each benefactor is stored under its own index key next to a
// count, so appending does not rewrite earlier entries.
func (m *Manager) BenefactorsAppend(id uint64, contributor types.Principal) error {
	count, err := m.benefactorCount(id)
	if err != nil {
		return err
	}
	if err := m.KVPut(campaignBenefactorKey(id, count), [20]byte(contributor)); err != nil {
		return err
	}
	return m.KVPut(campaignBenefactorsKey(id), count+1)
}

// Benefactors returns the campaign's benefactor list in insertion order.
func (m *Manager) Benefactors(id uint64) ([]types.Principal, error) {
	count, err := m.benefactorCount(id)
	if err != nil {
		return nil, err
	}
	out := make([]types.Principal, 0, count)
	for i := uint64(0); i < count; i++ {
		var raw [20]byte
		ok, err := m.KVGet(campaignBenefactorKey(id, i), &raw)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("campaign %d: benefactor %d missing", id, i)
		}
		out = append(out, types.Principal(raw))
	}
	return out, nil
}

func (m *Manager) benefactorCount(id uint64) (uint64, error) {
	var count uint64
	if _, err := m.KVGet(campaignBenefactorsKey(id), &count); err != nil {
		return 0, err
	}
	return count, nil
}
