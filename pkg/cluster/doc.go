// Package cluster replicates global signals across server replicas
// through Redis. Each replica runs a Broadcaster: registered
// GlobalSignal writes publish on a pub/sub channel, remote writes apply
// locally when their revision wins, and a replica joining the cluster
// syncs last known values from a Redis hash.
//
// Replication is last-writer-wins. Every update carries a per-key
// revision and the writing node's ID; higher revisions win and node IDs
// break ties, so all replicas converge on the same value without
// coordination. That makes the package a fit for banners, feature
// flags, and counters where the newest write should stand, and a poor
// fit for values that need read-modify-write consistency across nodes.
//
//	var Announcement = weft.NewGlobalSignal("")
//
//	b, err := cluster.Dial(ctx, cluster.FromConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//	if err := cluster.Register(b, "announcement", Announcement); err != nil {
//	    return err
//	}
//	if err := b.Start(ctx); err != nil {
//	    return err
//	}
package cluster
