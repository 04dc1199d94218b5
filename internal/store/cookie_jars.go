// ABOUTME: Cookie jar persistence
// ABOUTME: Cookies are stored as an opaque JSON array

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const cookieJarColumns = `id, workspace_id, created_at, updated_at, name, cookies`

func scanCookieJar(sc scanner) (*CookieJar, error) {
	var (
		c                            CookieJar
		created, updated, cookiesRaw string
	)
	if err := sc.Scan(&c.ID, &c.WorkspaceID, &created, &updated, &c.Name, &cookiesRaw); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, c.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	if c.Cookies, err = decodeList[json.RawMessage](cookiesRaw); err != nil {
		return nil, err
	}
	c.Model = KindCookieJar
	return &c, nil
}

// GetCookieJar retrieves a cookie jar by id.
func (s *SQLiteStore) GetCookieJar(ctx context.Context, id string) (*CookieJar, error) {
	return getOne(ctx, s, "cookie jar", scanCookieJar,
		`SELECT `+cookieJarColumns+` FROM cookie_jars WHERE id = ?`, id)
}

// ListCookieJars returns a workspace's cookie jars in creation order.
func (s *SQLiteStore) ListCookieJars(ctx context.Context, workspaceID string) ([]*CookieJar, error) {
	return listAll(ctx, s, "cookie jars", scanCookieJar,
		`SELECT `+cookieJarColumns+` FROM cookie_jars WHERE workspace_id = ? ORDER BY created_at, rowid`,
		workspaceID)
}

// UpsertCookieJar inserts or overwrites a cookie jar.
func (s *SQLiteStore) UpsertCookieJar(ctx context.Context, c *CookieJar) (_ *CookieJar, err error) {
	defer s.observe(KindCookieJar, "upsert", time.Now(), &err)

	id := ensureID(c.ID, prefixCookieJar)
	cookies, err := encodeJSON(c.Cookies)
	if err != nil {
		return nil, err
	}
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO cookie_jars (id, workspace_id, created_at, updated_at, name, cookies)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			name = excluded.name,
			cookies = excluded.cookies
	`, id, c.WorkspaceID, now, now, trimName(c.Name), cookies)
	if err != nil {
		return nil, fmt.Errorf("upserting cookie jar: %w", err)
	}

	out, err := s.GetCookieJar(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DeleteCookieJar removes a cookie jar.
func (s *SQLiteStore) DeleteCookieJar(ctx context.Context, id string) (_ *CookieJar, err error) {
	defer s.observe(KindCookieJar, "delete", time.Now(), &err)

	c, err := s.GetCookieJar(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deleteRow(ctx, "cookie_jars", id); err != nil {
		return nil, err
	}
	s.deleted(c)
	return c, nil
}
