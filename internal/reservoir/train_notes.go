package reservoir

// Offline training (fitting W_or from recorded state/target pairs) is
// out of scope for this runtime — models arrive pre-trained as a
// (name.bin, name.toml) pair loaded by internal/model. This file
// documents the fallback the (unbuilt) offline trainer must use so a
// future implementation doesn't have to rediscover it from the
// original Rust trainer.
//
// The normal-equations solve (state^T state) w = state^T target can
// produce a singular or near-singular Gram matrix when the collected
// state history is short relative to N, or when leak_rate is high
// enough that successive states are nearly collinear. The original
// trainer falls back to a regularized pseudoinverse — solve
// (state^T state + lambda*I) w = state^T target for a small lambda
// (1e-6 * trace(state^T state) / N) — rather than propagating the SVD
// failure, since a degraded-but-stable readout is preferable to a
// training run that aborts after collecting hours of state history.
