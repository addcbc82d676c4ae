package sqlitefile

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nexdatas/nxstools/internal/nexus"
)

type node struct {
	f      *file
	id     int64
	name   string
	parent *group
}

func (n *node) Name() string {
	return n.name
}

func (n *node) Parent() nexus.Group {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Attributes() nexus.Attributes {
	return &attributes{f: n.f, nodeID: n.id}
}

type group struct {
	node
	class string
}

func (g *group) Class() string {
	return g.class
}

const nodeColumns = `id, name, kind, nx_class, dtype, shape, chunk`

func (g *group) scanNode(row interface{ Scan(...any) error }) (nexus.Node, error) {
	var (
		id                                 int64
		name, kind, class, dtype, shp, chk string
	)
	if err := row.Scan(&id, &name, &kind, &class, &dtype, &shp, &chk); err != nil {
		return nil, err
	}
	base := node{f: g.f, id: id, name: name, parent: g}
	if kind == "group" {
		return &group{node: base, class: class}, nil
	}
	fd := &field{node: base, dtype: nexus.DType(dtype)}
	if err := json.Unmarshal([]byte(shp), &fd.shape); err != nil {
		return nil, fmt.Errorf("field %s: bad shape %q: %w", name, shp, err)
	}
	if err := json.Unmarshal([]byte(chk), &fd.chunk); err != nil {
		return nil, fmt.Errorf("field %s: bad chunk %q: %w", name, chk, err)
	}
	return fd, nil
}

func (g *group) Children() ([]nexus.Node, error) {
	rows, err := g.f.db.Query(
		`SELECT `+nodeColumns+` FROM nodes WHERE parent_id = ? ORDER BY name`, g.id)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", nexus.NodePath(g), err)
	}
	defer rows.Close()

	var children []nexus.Node
	for rows.Next() {
		child, err := g.scanNode(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

func (g *group) Open(name string) (nexus.Node, error) {
	row := g.f.db.QueryRow(
		`SELECT `+nodeColumns+` FROM nodes WHERE parent_id = ? AND name = ?`, g.id, name)
	child, err := g.scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", nexus.NodePath(g), name, nexus.ErrNotFound)
	}
	return child, err
}

func (g *group) Has(name string) (bool, error) {
	return g.has(g.f.db, name)
}

func (g *group) has(q dbtx, name string) (bool, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND name = ?`, g.id, name).Scan(&n)
	return n > 0, err
}

func (g *group) insertNode(q dbtx, name, kind, class string, dtype nexus.DType, shape, chunk []int) (int64, error) {
	if err := g.f.writable(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("empty node name")
	}
	exists, err := g.has(q, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%s/%s: %w", nexus.NodePath(g), name, nexus.ErrExists)
	}
	shp, err := json.Marshal(nonNil(shape))
	if err != nil {
		return 0, err
	}
	chk, err := json.Marshal(nonNil(chunk))
	if err != nil {
		return 0, err
	}
	res, err := q.Exec(
		`INSERT INTO nodes (parent_id, name, kind, nx_class, dtype, shape, chunk) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.id, name, kind, class, string(dtype), string(shp), string(chk))
	if err != nil {
		return 0, fmt.Errorf("create %s/%s: %w", nexus.NodePath(g), name, err)
	}
	return res.LastInsertId()
}

func (g *group) CreateGroup(name, class string) (nexus.Group, error) {
	id, err := g.insertNode(g.f.db, name, "group", class, "", nil, nil)
	if err != nil {
		return nil, err
	}
	child := &group{node: node{f: g.f, id: id, name: name, parent: g}, class: class}
	if class != "" {
		if err := child.Attributes().Set("NX_class", class); err != nil {
			return nil, err
		}
	}
	return child, nil
}

func (g *group) CreateField(name string, dtype nexus.DType, shape, chunk []int) (nexus.Field, error) {
	if !dtype.Numeric() && dtype != nexus.String {
		return nil, fmt.Errorf("create field %s: unsupported dtype %q", name, dtype)
	}
	if dtype == nexus.String && len(shape) != 0 {
		return nil, fmt.Errorf("create field %s: string fields are scalar", name)
	}
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("create field %s: negative dimension in %v", name, shape)
		}
	}
	if chunk == nil && len(shape) > 0 {
		chunk = append([]int{1}, shape[1:]...)
	}
	id, err := g.insertNode(g.f.db, name, "field", "", dtype, shape, chunk)
	if err != nil {
		return nil, err
	}
	return &field{
		node:  node{f: g.f, id: id, name: name, parent: g},
		dtype: dtype,
		shape: append([]int(nil), nonNil(shape)...),
		chunk: append([]int(nil), nonNil(chunk)...),
	}, nil
}

func (g *group) CreateFieldWithSlab(name string, dtype nexus.DType, frameShape []int, data []byte, attrs map[string]string) (nexus.Field, error) {
	if err := g.f.writable(); err != nil {
		return nil, err
	}
	if !dtype.Numeric() {
		return nil, fmt.Errorf("create field %s: unsupported dtype %q", name, dtype)
	}
	for _, d := range frameShape {
		if d < 0 {
			return nil, fmt.Errorf("create field %s: negative dimension in %v", name, frameShape)
		}
	}
	shape := append([]int{1}, frameShape...)
	fd := &field{
		node:  node{f: g.f, name: name, parent: g},
		dtype: dtype,
		shape: shape,
		chunk: append([]int(nil), shape...),
	}
	if len(data) != fd.SlabSize() {
		return nil, fmt.Errorf("create field %s: got %d bytes, slab holds %d", name, len(data), fd.SlabSize())
	}

	tx, err := g.f.db.Begin()
	if err != nil {
		return nil, err
	}
	fd.id, err = g.insertNode(tx, name, "field", "", dtype, fd.shape, fd.chunk)
	if err == nil {
		err = fd.putSlab(tx, 0, data)
	}
	if err == nil {
		err = setAttributes(tx, fd.id, attrs)
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create %s: %w", nexus.NodePath(fd), err)
	}
	return fd, nil
}

type field struct {
	node
	dtype nexus.DType
	shape []int
	chunk []int
}

func (fd *field) DType() nexus.DType {
	return fd.dtype
}

func (fd *field) Shape() []int {
	return append([]int(nil), fd.shape...)
}

func (fd *field) Chunk() []int {
	return append([]int(nil), fd.chunk...)
}

func (fd *field) SlabSize() int {
	if len(fd.shape) == 0 {
		return fd.dtype.Size()
	}
	return fd.dtype.Size() * nexus.Elements(fd.shape[1:])
}

func (fd *field) slabCount() int {
	if len(fd.shape) == 0 {
		return 1
	}
	return fd.shape[0]
}

func (fd *field) Grow(n int) error {
	if err := fd.f.writable(); err != nil {
		return err
	}
	if len(fd.shape) == 0 {
		return fmt.Errorf("grow %s: scalar field", nexus.NodePath(fd))
	}
	if n < 0 {
		return fmt.Errorf("grow %s: negative extent %d", nexus.NodePath(fd), n)
	}
	shape := fd.Shape()
	shape[0] += n
	if err := fd.putShape(fd.f.db, shape); err != nil {
		return err
	}
	fd.shape = shape
	return nil
}

func (fd *field) putShape(q dbtx, shape []int) error {
	shp, err := json.Marshal(shape)
	if err != nil {
		return err
	}
	if _, err := q.Exec(`UPDATE nodes SET shape = ? WHERE id = ?`, string(shp), fd.id); err != nil {
		return fmt.Errorf("grow %s: %w", nexus.NodePath(fd), err)
	}
	return nil
}

// AppendSlab commits the new shape, the slab and attrs in one transaction;
// the cached shape only changes after the commit.
func (fd *field) AppendSlab(data []byte, attrs map[string]string) (int, error) {
	if err := fd.f.writable(); err != nil {
		return 0, err
	}
	if !fd.dtype.Numeric() || len(fd.shape) == 0 {
		return 0, fmt.Errorf("append to %s: %w", nexus.NodePath(fd), nexus.ErrNotField)
	}
	if len(data) != fd.SlabSize() {
		return 0, fmt.Errorf("append to %s: got %d bytes, slab holds %d", nexus.NodePath(fd), len(data), fd.SlabSize())
	}
	slot := fd.shape[0]
	shape := fd.Shape()
	shape[0]++

	tx, err := fd.f.db.Begin()
	if err != nil {
		return 0, err
	}
	err = fd.putShape(tx, shape)
	if err == nil {
		err = fd.putSlab(tx, slot, data)
	}
	if err == nil {
		err = setAttributes(tx, fd.id, attrs)
	}
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append to %s: %w", nexus.NodePath(fd), err)
	}
	fd.shape = shape
	return slot, nil
}

func (fd *field) checkSlab(i int) error {
	if !fd.dtype.Numeric() {
		return fmt.Errorf("%s: %w", nexus.NodePath(fd), nexus.ErrNotField)
	}
	if i < 0 || i >= fd.slabCount() {
		return fmt.Errorf("%s[%d] (length %d): %w", nexus.NodePath(fd), i, fd.slabCount(), nexus.ErrOutOfRange)
	}
	return nil
}

func (fd *field) ReadSlab(i int) ([]byte, error) {
	if err := fd.checkSlab(i); err != nil {
		return nil, err
	}
	var raw []byte
	err := fd.f.db.QueryRow(`SELECT data FROM slabs WHERE node_id = ? AND idx = ?`, fd.id, i).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		// never written: fill value
		return make([]byte, fd.SlabSize()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s[%d]: %w", nexus.NodePath(fd), i, err)
	}
	data, err := decodeSlab(raw)
	if err != nil {
		return nil, fmt.Errorf("read %s[%d]: %w", nexus.NodePath(fd), i, err)
	}
	return data, nil
}

func (fd *field) WriteSlab(i int, data []byte) error {
	if err := fd.f.writable(); err != nil {
		return err
	}
	if err := fd.checkSlab(i); err != nil {
		return err
	}
	if len(data) != fd.SlabSize() {
		return fmt.Errorf("write %s[%d]: got %d bytes, slab holds %d", nexus.NodePath(fd), i, len(data), fd.SlabSize())
	}
	return fd.putSlab(fd.f.db, i, data)
}

// dbtx is satisfied by *sql.DB and *sql.Tx. Inside a transaction every
// statement must go through the Tx: the pool holds a single connection.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (fd *field) putSlab(db dbtx, i int, data []byte) error {
	encoded, err := encodeSlab(data, fd.f.compression)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT OR REPLACE INTO slabs (node_id, idx, data) VALUES (?, ?, ?)`, fd.id, i, encoded)
	if err != nil {
		return fmt.Errorf("write %s[%d]: %w", nexus.NodePath(fd), i, err)
	}
	return nil
}

func (fd *field) Read() ([]byte, error) {
	if !fd.dtype.Numeric() {
		return nil, fmt.Errorf("%s: %w", nexus.NodePath(fd), nexus.ErrNotField)
	}
	size := fd.SlabSize()
	out := make([]byte, size*fd.slabCount())
	rows, err := fd.f.db.Query(`SELECT idx, data FROM slabs WHERE node_id = ? ORDER BY idx`, fd.id)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", nexus.NodePath(fd), err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			idx int
			raw []byte
		)
		if err := rows.Scan(&idx, &raw); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= fd.slabCount() {
			continue
		}
		data, err := decodeSlab(raw)
		if err != nil {
			return nil, fmt.Errorf("read %s[%d]: %w", nexus.NodePath(fd), idx, err)
		}
		copy(out[idx*size:(idx+1)*size], data)
	}
	return out, rows.Err()
}

func (fd *field) Write(data []byte) error {
	if err := fd.f.writable(); err != nil {
		return err
	}
	if !fd.dtype.Numeric() {
		return fmt.Errorf("%s: %w", nexus.NodePath(fd), nexus.ErrNotField)
	}
	size := fd.SlabSize()
	count := fd.slabCount()
	if len(data) != size*count {
		return fmt.Errorf("write %s: got %d bytes, field holds %d", nexus.NodePath(fd), len(data), size*count)
	}

	tx, err := fd.f.db.Begin()
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := fd.putSlab(tx, i, data[i*size:(i+1)*size]); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (fd *field) ReadString() (string, error) {
	if fd.dtype != nexus.String {
		return "", fmt.Errorf("%s is %s, not a string field", nexus.NodePath(fd), fd.dtype)
	}
	var raw []byte
	err := fd.f.db.QueryRow(`SELECT data FROM slabs WHERE node_id = ? AND idx = 0`, fd.id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", nexus.NodePath(fd), err)
	}
	data, err := decodeSlab(raw)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", nexus.NodePath(fd), err)
	}
	return string(data), nil
}

func (fd *field) WriteString(s string) error {
	if err := fd.f.writable(); err != nil {
		return err
	}
	if fd.dtype != nexus.String {
		return fmt.Errorf("%s is %s, not a string field", nexus.NodePath(fd), fd.dtype)
	}
	return fd.putSlab(fd.f.db, 0, []byte(s))
}

type attributes struct {
	f      *file
	nodeID int64
}

func (a *attributes) Get(name string) (string, bool, error) {
	var value string
	err := a.f.db.QueryRow(
		`SELECT value FROM attributes WHERE node_id = ? AND name = ?`, a.nodeID, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read attribute %s: %w", name, err)
	}
	return value, true, nil
}

func (a *attributes) Set(name, value string) error {
	if err := a.f.writable(); err != nil {
		return err
	}
	return setAttribute(a.f.db, a.nodeID, name, value)
}

func setAttribute(q dbtx, nodeID int64, name, value string) error {
	_, err := q.Exec(
		`INSERT OR REPLACE INTO attributes (node_id, name, value) VALUES (?, ?, ?)`, nodeID, name, value)
	if err != nil {
		return fmt.Errorf("write attribute %s: %w", name, err)
	}
	return nil
}

func setAttributes(q dbtx, nodeID int64, attrs map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		if err := setAttribute(q, nodeID, name, attrs[name]); err != nil {
			return err
		}
	}
	return nil
}

func (a *attributes) Names() ([]string, error) {
	rows, err := a.f.db.Query(`SELECT name FROM attributes WHERE node_id = ? ORDER BY name`, a.nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
