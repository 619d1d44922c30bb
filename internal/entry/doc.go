// Package entry is the core of Sugarline Core: the multi-tenant CGM entry
// store and its legacy-compatible query grammar.
//
// Uploads are normalized (canonical sysTime, derived utcOffset, generated
// 24-hex IDs) and deduplicated on (tenant, sysTime, type), so uploader
// retries are idempotent. Reads go through either simple time/count
// selectors or the legacy find[field][$op]=value bracket grammar, which is
// translated to SQL against a whitelisted column set.
package entry
