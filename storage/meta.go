package storage

import (
	"fmt"
)

// Superblock map, stored in page slot 0 of the file (page id 0 is never minted)
// 0            7            9                        17                       25                       33           35
// +------------+------------+------------------------+------------------------+------------------------+------------+
// |  DB Name   | DB Version |       Page Size        |     Last Page ID       |       Root Page        | Root Slot  |
// |  7 bytes   |  uint16    |        uint64          |        uint64          |        uint64          |  uint16    |
// +------------+------------+------------------------+------------------------+------------------------+------------+

const (
	superblockPageNumber = 0
	dbName               = "worlddb"
	dbVersionMinor       = 1
	dbVersionMajor       = 0

	metaDbNameSize     = len(dbName)
	metaDbVersionSize  = UInt16Size
	metaPageSizeSize   = UInt64Size
	metaLastPageIDSize = UInt64Size
	metaRootPageSize   = UInt64Size
	metaRootSlotSize   = UInt16Size

	metaDbNameOffset     = 0
	metaDbVersionOffset  = metaDbNameOffset + metaDbNameSize
	metaPageSizeOffset   = metaDbVersionOffset + metaDbVersionSize
	metaLastPageIDOffset = metaPageSizeOffset + metaPageSizeSize
	metaRootPageOffset   = metaLastPageIDOffset + metaLastPageIDSize
	metaRootSlotOffset   = metaRootPageOffset + metaRootPageSize
	metaSize             = metaRootSlotOffset + metaRootSlotSize
)

type Meta struct {
	dbName     string
	dbVersion  uint16
	pageSize   uint64
	lastPageID PageID
	root       EntryAddress
}

func NewMeta(pageSize uint64) *Meta {
	return &Meta{
		dbName:    dbName,
		dbVersion: uint16(dbVersionMajor)<<8 | uint16(dbVersionMinor),
		pageSize:  pageSize,
	}
}

func (m *Meta) GetDbName() string {
	return m.dbName
}

func (m *Meta) GetDbVersion() (major byte, minor byte) {
	return byte(m.dbVersion >> 8), byte(m.dbVersion & 0xff)
}

func (m *Meta) GetDbVersionString() string {
	major, minor := m.GetDbVersion()
	return fmt.Sprintf("%d.%d", major, minor)
}

func (m *Meta) Serialize(data []byte) error {
	c := NewCursor(data)
	if err := c.WriteFull([]byte(m.dbName)); err != nil {
		return err
	}
	if err := c.WriteUint16(m.dbVersion); err != nil {
		return err
	}
	if err := c.WriteUint64(m.pageSize); err != nil {
		return err
	}
	if err := c.WriteUint64(uint64(m.lastPageID)); err != nil {
		return err
	}
	if err := c.WriteUint64(uint64(m.root.PageID)); err != nil {
		return err
	}
	return c.WriteUint16(m.root.SlotID)
}

func (m *Meta) Deserialize(data []byte) error {
	c := NewCursor(data)
	name := make([]byte, metaDbNameSize)
	if err := c.ReadFull(name); err != nil {
		return err
	}
	version, err := c.ReadUint16()
	if err != nil {
		return err
	}
	pageSize, err := c.ReadUint64()
	if err != nil {
		return err
	}
	lastPageID, err := c.ReadUint64()
	if err != nil {
		return err
	}
	rootPage, err := c.ReadUint64()
	if err != nil {
		return err
	}
	rootSlot, err := c.ReadUint16()
	if err != nil {
		return err
	}
	m.dbName = string(name)
	m.dbVersion = version
	m.pageSize = pageSize
	m.lastPageID = PageID(lastPageID)
	m.root = EntryAddress{PageID: PageID(rootPage), SlotID: rootSlot}
	return nil
}

func WriteMeta(dal *Dal, m *Meta) error {
	if err := m.Serialize(dal.slot(superblockPageNumber)); err != nil {
		return fmt.Errorf("failed to write superblock: %w", err)
	}
	logger.Debug("write superblock", "lastPageID", m.lastPageID, "root", m.root)
	return dal.syncSlot(superblockPageNumber)
}

func ReadMeta(dal *Dal) (*Meta, error) {
	m := NewMeta(0)
	if err := m.Deserialize(dal.slot(superblockPageNumber)); err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}
	if m.dbName != dbName {
		return nil, ErrBadDbName
	}
	if m.dbVersion>>8 != uint16(dbVersionMajor) {
		return nil, ErrBadDbVersion
	}
	logger.Debug("read superblock", "dbName", m.dbName, "version", m.GetDbVersionString(),
		"pageSize", m.pageSize, "lastPageID", m.lastPageID)
	return m, nil
}
