// Copyright 2026 The asmfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package catalog wraps parameterized queries and PL/SQL procedure
// calls against the ASM storage catalog: the v$asm_diskgroup,
// v$asm_alias and v$asm_file views, and the dbms_diskgroup package.
//
// Every query here is bound with ordinal or named parameters rather
// than interpolated, following the original implementation's use of
// bind variables throughout.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/usrecnik/asmfs/internal/inode"
	"github.com/usrecnik/asmfs/internal/logger"
)

// Column lists shared by every query that touches v$asm_alias / v$asm_file,
// matching the original's ASM_ALIAS_COLUMNS / ASM_FILE_COLUMNS constants.
const (
	aliasColumns = "a.reference_index, a.alias_index, a.file_number, a.name, a.alias_directory, a.system_created"
	fileColumns  = "f.bytes, f.blocks, f.creation_date, f.modification_date"
)

// ArchivelogFileType is the dbms_diskgroup file_type value for archived
// redo logs; these files carry one synthesized trailer block beyond
// their catalog size.
const ArchivelogFileType = 4

// SPFileFileType is the dbms_diskgroup file_type value for server
// parameter files, which are block-indexed starting at 1 rather than 0.
const SPFileFileType = 13

// Client is a single session against the ASM catalog. Each FUSE open()
// in catalog-mediated mode creates its own Client, since a
// dbms_diskgroup handle is scoped to the session that opened it.
type Client struct {
	db *sql.DB
}

// ParseConnString splits a "user/pass@inst" remote connection string
// into its three components: first on '@', then the left-hand side on
// '/'. Malformed strings are rejected rather than causing the process
// to exit, as the original CLI did.
func ParseConnString(s string) (user, pass, inst string, err error) {
	userPass, after, ok := strings.Cut(s, "@")
	if !ok {
		return "", "", "", fmt.Errorf("invalid connection string %q: missing '@'", s)
	}
	u, p, ok := strings.Cut(userPass, "/")
	if !ok {
		return "", "", "", fmt.Errorf("invalid connection string %q: missing '/' in user/pass", s)
	}
	return u, p, after, nil
}

// Connect opens a catalog session. An empty connStr connects locally
// using external OS authentication with the SYSASM privilege; a
// non-empty connStr is parsed as "user/pass@inst" and connects remotely
// with the SYSDBA privilege, matching the original's two connection
// modes.
func Connect(ctx context.Context, connStr string) (*Client, error) {
	var dsn string
	if connStr == "" {
		logger.Infof("connecting to ASM catalog using external authentication (SYSASM)")
		dsn = go_ora.BuildUrl("", 0, "", "", "", map[string]string{
			"AUTH TYPE": "OS",
			"DBA PRIVILEGE": "SYSASM",
		})
	} else {
		user, pass, inst, err := ParseConnString(connStr)
		if err != nil {
			return nil, err
		}
		host, port, service := splitInstance(inst)
		logger.Infof("connecting to ASM catalog at %s (SYSDBA)", inst)
		dsn = go_ora.BuildUrl(host, port, service, user, pass, map[string]string{
			"DBA PRIVILEGE": "SYSDBA",
		})
	}

	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to catalog: %w", err)
	}

	return &Client{db: db}, nil
}

// splitInstance turns "host:port/service" into its parts, defaulting to
// the standard Oracle listener port when none is given.
func splitInstance(inst string) (host string, port int, service string) {
	port = 1521
	hostPort := inst
	if i := strings.IndexByte(inst, '/'); i >= 0 {
		hostPort = inst[:i]
		service = inst[i+1:]
	}
	if i := strings.IndexByte(hostPort, ':'); i >= 0 {
		host = hostPort[:i]
		fmt.Sscanf(hostPort[i+1:], "%d", &port)
	} else {
		host = hostPort
	}
	return
}

// Close releases the underlying database session.
func (c *Client) Close() error {
	return c.db.Close()
}

// Kind mirrors fuseops.DirentType without importing the fuse package
// into the catalog layer.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
)

// DirEntry is one row of a readdir() listing.
type DirEntry struct {
	Inode uint64
	Kind  Kind
	Name  string
}

// Attr is a synthesized POSIX attribute record for a directory (root or
// group directory) that has no backing catalog row.
type Attr struct {
	Inode uint64
	Kind  Kind
	Size  uint64
	Blocks uint64
}

// Alias is a fully-populated v$asm_alias row, optionally joined with
// its v$asm_file row. HasFile is false for bare directory listings,
// which never join the file view (see ListAliases).
type Alias struct {
	ReferenceIndex   uint32
	AliasIndex       uint32
	FileNumber       uint32
	Name             string
	IsDirectory      bool
	SystemCreated    bool
	HasFile          bool
	Bytes            uint64
	Blocks           uint64
	CreationDate     time.Time
	ModificationDate time.Time
}

// Kind derives the FUSE entry kind the way the original does: a
// directory alias stays a directory; a system-created alias is the
// regular file carrying real bytes; any other alias is a symlink
// pointing at the system-created alias sharing its file_number.
func (a Alias) Kind() Kind {
	switch {
	case a.IsDirectory:
		return KindDir
	case a.SystemCreated:
		return KindFile
	default:
		return KindSymlink
	}
}

func parseYN(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "Y")
}

// ListGroups returns every mounted volume group as a directory entry,
// "." and ".." included, matching query_asm_diskgroup_vec.
func (c *Client) ListGroups(ctx context.Context) ([]DirEntry, error) {
	rows, err := c.db.QueryContext(ctx, `select group_number, '+' || name as name from v$asm_diskgroup order by name`)
	if err != nil {
		return nil, fmt.Errorf("listing volume groups: %w", err)
	}
	defer rows.Close()

	entries := []DirEntry{
		{Inode: rootInode, Kind: KindDir, Name: "."},
		{Inode: rootInode, Kind: KindDir, Name: ".."},
	}
	for rows.Next() {
		var groupNumber uint8
		var name string
		if err := rows.Scan(&groupNumber, &name); err != nil {
			return nil, fmt.Errorf("scanning volume group row: %w", err)
		}
		entries = append(entries, DirEntry{Inode: encodeGroup(groupNumber), Kind: KindDir, Name: name})
	}
	return entries, rows.Err()
}

// GroupByName resolves "+DATA" (or "DATA") to the attributes of its
// group directory.
func (c *Client) GroupByName(ctx context.Context, name string) (Attr, error) {
	dgName := strings.TrimPrefix(name, "+")
	row := c.db.QueryRowContext(ctx,
		`select group_number, '+' || name as name from v$asm_diskgroup where name = :1`, dgName)

	var groupNumber uint8
	var gotName string
	if err := row.Scan(&groupNumber, &gotName); err != nil {
		return Attr{}, fmt.Errorf("resolving volume group %q: %w", name, err)
	}
	return Attr{Inode: encodeGroup(groupNumber), Kind: KindDir}, nil
}

// ListAliases lists every alias whose parent_index is parentIndex. The
// listing never joins v$asm_file; file size and timestamps are fetched
// lazily via AliasByParentAndName on lookup and AliasByReferenceAndIndex
// on getattr, as the original does.
func (c *Client) ListAliases(ctx context.Context, parentIndex uint32) ([]DirEntry, error) {
	query := fmt.Sprintf(`
		select %s
			from v$asm_alias a
			where a.parent_index = :1
			order by a.name
	`, aliasColumns)

	rows, err := c.db.QueryContext(ctx, query, parentIndex)
	if err != nil {
		return nil, fmt.Errorf("listing aliases under parent %d: %w", parentIndex, err)
	}
	defer rows.Close()

	var entries []DirEntry
	for rows.Next() {
		a, err := scanAliasBare(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, DirEntry{Inode: encodeAlias(a), Kind: a.Kind(), Name: a.Name})
	}
	return entries, rows.Err()
}

// AliasByParentAndName resolves one alias by (parent directory, name),
// joined with its file row.
func (c *Client) AliasByParentAndName(ctx context.Context, parentIndex uint32, name string) (Alias, error) {
	query := fmt.Sprintf(`
		select %s, %s
			from v$asm_alias a
			left join v$asm_file f on f.file_number = a.file_number
			where a.parent_index = :1 and a.name = :2
	`, aliasColumns, fileColumns)

	row := c.db.QueryRowContext(ctx, query, parentIndex, name)
	return scanAliasWithFile(row)
}

// AliasByReferenceAndIndex resolves one alias by its own catalog key,
// joined with its file row.
func (c *Client) AliasByReferenceAndIndex(ctx context.Context, referenceIndex, aliasIndex uint32) (Alias, error) {
	query := fmt.Sprintf(`
		select %s, %s
			from v$asm_alias a
			left join v$asm_file f on f.file_number = a.file_number
			where a.reference_index = :1 and a.alias_index = :2
	`, aliasColumns, fileColumns)

	row := c.db.QueryRowContext(ctx, query, referenceIndex, aliasIndex)
	return scanAliasWithFile(row)
}

// ResolveLink walks the alias tree from its root (parent_index mod
// 2^24 == 0, i.e. a group-directory entry) down to the alias addressed
// by (referenceIndex, aliasIndex), and returns the full "+GROUP/a/b/c"
// path of the system-created alias sharing that alias's file_number.
// This is the target every non-system alias (symlink) resolves to, and
// the path dbms_diskgroup.getfileattr/open expect.
func (c *Client) ResolveLink(ctx context.Context, referenceIndex, aliasIndex uint32) (string, error) {
	link, err := c.AliasByReferenceAndIndex(ctx, referenceIndex, aliasIndex)
	if err != nil {
		return "", fmt.Errorf("resolving link target: %w", err)
	}

	query := `
		select x.* from (
			select reference_index, alias_index, file_number, alias_directory, system_created,
			       concat('+' || group_name, sys_connect_by_path(name, '/')) as name
				from (
					select a.*, g.name as group_name
						from v$asm_alias a
						join v$asm_diskgroup g on a.group_number = g.group_number
				)
				start with (mod(parent_index, power(2, 24))) = 0
				connect by prior reference_index = parent_index
		) x where x.file_number = :1 and x.system_created = 'Y'
		fetch first 1 rows only
	`

	var (
		refIdx, aliasIdx, fileNumber uint32
		aliasDir, systemCreated, targetName string
	)
	row := c.db.QueryRowContext(ctx, query, link.FileNumber)
	if err := row.Scan(&refIdx, &aliasIdx, &fileNumber, &aliasDir, &systemCreated, &targetName); err != nil {
		return "", fmt.Errorf("walking alias tree for file_number %d: %w", link.FileNumber, err)
	}
	return targetName, nil
}

func scanAliasBare(rows *sql.Rows) (Alias, error) {
	var a Alias
	var aliasDir, systemCreated string
	if err := rows.Scan(&a.ReferenceIndex, &a.AliasIndex, &a.FileNumber, &a.Name, &aliasDir, &systemCreated); err != nil {
		return Alias{}, fmt.Errorf("scanning alias row: %w", err)
	}
	a.IsDirectory = parseYN(aliasDir)
	a.SystemCreated = parseYN(systemCreated)
	return a, nil
}

func scanAliasWithFile(row *sql.Row) (Alias, error) {
	var a Alias
	var aliasDir, systemCreated string
	var bytes, blocks sql.NullInt64
	var creation, modification sql.NullTime

	if err := row.Scan(&a.ReferenceIndex, &a.AliasIndex, &a.FileNumber, &a.Name, &aliasDir, &systemCreated,
		&bytes, &blocks, &creation, &modification); err != nil {
		return Alias{}, fmt.Errorf("scanning alias+file row: %w", err)
	}

	a.IsDirectory = parseYN(aliasDir)
	a.SystemCreated = parseYN(systemCreated)
	a.HasFile = bytes.Valid
	if bytes.Valid {
		a.Bytes = uint64(bytes.Int64)
	}
	if blocks.Valid {
		a.Blocks = uint64(blocks.Int64)
	}
	if creation.Valid {
		a.CreationDate = creation.Time
	}
	if modification.Valid {
		a.ModificationDate = modification.Time
	}
	return a, nil
}

// FileHandle is a live dbms_diskgroup session handle returned by Open.
// SizeAsm is the size the catalog carries for the file; SizeFs is the
// size the filesystem should report to the kernel, which differs from
// SizeAsm only for archivelogs carrying a synthesized trailer block.
type FileHandle struct {
	Handle    uint64
	BlockSize uint32
	SizeAsm   uint64
	SizeFs    uint64
	FileType  uint32
}

// FileAttr is the result of dbms_diskgroup.getfileattr, resolved ahead
// of opening the file so the caller can size read buffers and pick the
// right SPFILE/archivelog handling before a handle is ever minted.
type FileAttr struct {
	FileType  uint32
	SizeAsm   uint64
	SizeFs    uint64
	BlockSize uint32
}

// sizeFsFor derives the filesystem-visible size from the catalog size:
// archivelogs carry one synthesized trailer block beyond their catalog
// size (see readengine.fillTrailer); every other file type reports its
// catalog size unchanged.
func sizeFsFor(fileType uint32, sizeAsm uint64, blockSize uint32) uint64 {
	if fileType == ArchivelogFileType {
		return sizeAsm + uint64(blockSize)
	}
	return sizeAsm
}

// GetFileAttr resolves targetPath's type, catalog size, filesystem size
// and block size via dbms_diskgroup.getfileattr.
func (c *Client) GetFileAttr(ctx context.Context, targetPath string) (FileAttr, error) {
	var fileType uint32
	var fileSize uint64
	var blockSize uint32
	_, err := c.db.ExecContext(ctx,
		`begin dbms_diskgroup.getfileattr(:b_target, :b_filetype, :b_filesize, :b_blksize); end;`,
		targetPath,
		sql.Named("b_filetype", go_ora.Out{Dest: &fileType}),
		sql.Named("b_filesize", go_ora.Out{Dest: &fileSize}),
		sql.Named("b_blksize", go_ora.Out{Dest: &blockSize}),
	)
	if err != nil {
		return FileAttr{}, fmt.Errorf("dbms_diskgroup.getfileattr(%s): %w", targetPath, err)
	}
	logger.Debugf("getfileattr: target=%s filetype=%d filesize=%d blksize=%d", targetPath, fileType, fileSize, blockSize)

	return FileAttr{
		FileType:  fileType,
		SizeAsm:   fileSize,
		SizeFs:    sizeFsFor(fileType, fileSize, blockSize),
		BlockSize: blockSize,
	}, nil
}

// Open resolves the alias at (referenceIndex, aliasIndex) to its
// backing file path, fetches its attributes via GetFileAttr, and opens
// it read-only via dbms_diskgroup.open. The returned handle is only
// valid on this Client's own session.
func (c *Client) Open(ctx context.Context, referenceIndex, aliasIndex uint32) (FileHandle, error) {
	targetPath, err := c.ResolveLink(ctx, referenceIndex, aliasIndex)
	if err != nil {
		return FileHandle{}, err
	}

	attr, err := c.GetFileAttr(ctx, targetPath)
	if err != nil {
		return FileHandle{}, err
	}

	var handle uint64
	var physicalBlockSize uint64
	_, err = c.db.ExecContext(ctx,
		`begin dbms_diskgroup.open(:b_target, :b_mode, :b_filetype, :b_blksize, :b_handle, :b_pblksize, :b_filesize); end;`,
		targetPath, "r", attr.FileType, attr.BlockSize,
		sql.Named("b_handle", go_ora.Out{Dest: &handle}),
		sql.Named("b_pblksize", go_ora.Out{Dest: &physicalBlockSize}),
		attr.SizeAsm,
	)
	if err != nil {
		return FileHandle{}, fmt.Errorf("dbms_diskgroup.open(%s): %w", targetPath, err)
	}
	logger.Debugf("open: handle=%d pblksize=%d target=%s filetype=%d size_asm=%d size_fs=%d blksize=%d",
		handle, physicalBlockSize, targetPath, attr.FileType, attr.SizeAsm, attr.SizeFs, attr.BlockSize)

	return FileHandle{Handle: handle, BlockSize: attr.BlockSize, SizeAsm: attr.SizeAsm, SizeFs: attr.SizeFs, FileType: attr.FileType}, nil
}

// CloseHandle releases a handle returned by Open via dbms_diskgroup.close.
// Named distinctly from Close, which tears down the whole session.
func (c *Client) CloseHandle(ctx context.Context, handle uint64) error {
	_, err := c.db.ExecContext(ctx, `begin dbms_diskgroup.close(:b_handle); end;`, handle)
	if err != nil {
		return fmt.Errorf("dbms_diskgroup.close(%d): %w", handle, err)
	}
	return nil
}

// readBlocks issues a single dbms_diskgroup.read call. The caller must
// never request more than fits in a RAW(32767) bind, i.e.
// amountInBlocks*blockSize must stay at or under readengine's 24 KiB
// step ceiling.
func (c *Client) readBlocks(ctx context.Context, handle uint64, blockSize uint32, offsetInBlocks int64, amountInBlocks uint32) ([]byte, error) {
	amountInBytes := blockSize * amountInBlocks
	buffer := make([]byte, amountInBytes)

	_, err := c.db.ExecContext(ctx,
		`begin dbms_diskgroup.read(:b_handle, :b_offset, :b_length, :b_buffer); end;`,
		handle, offsetInBlocks,
		// b_length is IN-OUT: dbms_diskgroup.read needs the requested
		// byte count as input and reports the actual count read back
		// out. go_ora.Out{In: true} sends Dest's current value as the
		// bind's IN side before the call, instead of leaving it a
		// write-only OUT bind (which would hand the procedure a
		// zero-length request).
		sql.Named("b_length", go_ora.Out{Dest: &amountInBytes, Size: 4, In: true}),
		sql.Named("b_buffer", go_ora.Out{Dest: &buffer, Size: int(amountInBytes)}),
	)
	if err != nil {
		return nil, fmt.Errorf("dbms_diskgroup.read(handle=%d offset=%d amount=%d): %w", handle, offsetInBlocks, amountInBlocks, err)
	}

	if uint32(len(buffer)) > amountInBytes {
		buffer = buffer[:amountInBytes]
	}
	return buffer, nil
}

// ReadBlocks is the exported, public-facing form of readBlocks used by
// the read engine.
func (c *Client) ReadBlocks(ctx context.Context, handle uint64, blockSize uint32, offsetInBlocks int64, amountInBlocks uint32) ([]byte, error) {
	return c.readBlocks(ctx, handle, blockSize, offsetInBlocks, amountInBlocks)
}

const rootInode = inode.RootID

func encodeGroup(groupNumber uint8) uint64 {
	return inode.EncodeGroup(groupNumber)
}

func encodeAlias(a Alias) uint64 {
	return inode.Encode(a.ReferenceIndex, a.AliasIndex)
}
