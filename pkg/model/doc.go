// Package model describes the base objects manipulated by trawler.
//
// The object model for trawler is composed of:
//
//	Records:
//	  A record is one unit of activity harvested from a source: a commit, a
//	  review, an email or a member profile. Records are schemaless maps keyed
//	  by a primary key and stamped with a record type.
//
//	Repos:
//	  A repo descriptor names a code repository to harvest: its URI, the
//	  module it maps to and the releases (and release branches) it took part
//	  in.
//
//	Releases:
//	  A release names one entry of the project release train. Release names
//	  scope the per-branch harvesting and the taxonomy buckets.
//
//	Module groups:
//	  A module group is one node of the module taxonomy: a named set of
//	  modules with a tag telling how the group was produced (program feed,
//	  project type bucket, or plain module registration).
//
//	Corrections:
//	  A correction is an out-of-band fix for a stored record, applied by
//	  primary key after harvesting.
package model
