// Package diffmap computes per-pixel perceptual importance between
// consecutive frames, used to steer palette selection toward pixels that
// are worth encoding faithfully.
package diffmap

import "image"

// sentinel is the colordiff value returned whenever either pixel is fully
// transparent; it saturates importance/attenuation math that follows.
const sentinel = 255 * 255 * 6

// ColorDiff returns a weighted squared channel distance between two RGBA
// pixels, or the sentinel value if either is fully transparent. Channels are
// promoted to int32 before squaring to avoid overflow and to match signed
// subtraction semantics.
func ColorDiff(ar, ag, ab, aa, br, bg, bb, ba uint8) uint32 {
	if aa == 0 || ba == 0 {
		return sentinel
	}
	dr := int32(int16(ar) - int16(br))
	dg := int32(int16(ag) - int16(bg))
	db := int32(int16(ab) - int16(bb))
	return uint32(dr*dr)*2 + uint32(dg*dg)*3 + uint32(db*db)
}

// Importance builds the importance map for a frame that has a following
// frame, per the distilled spec: larger color changes yield smaller
// importance. It also reports whether any pixel's alpha decreased from cur
// to next, which drives the Background disposal hint.
func Importance(cur, next *image.NRGBA) (imp []uint8, needsBackgroundDispose bool) {
	b := cur.Bounds()
	w, h := b.Dx(), b.Dy()
	imp = make([]uint8, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			co := cur.PixOffset(x, y)
			no := next.PixOffset(x, y)
			cr, cg, cb, ca := cur.Pix[co], cur.Pix[co+1], cur.Pix[co+2], cur.Pix[co+3]
			nr, ng, nb, na := next.Pix[no], next.Pix[no+1], next.Pix[no+2], next.Pix[no+3]
			if na < ca {
				needsBackgroundDispose = true
			}
			d := ColorDiff(nr, ng, nb, na, cr, cg, cb, ca)
			imp[i] = uint8(255 - d/(255*255*6/170))
			i++
		}
	}
	return imp, needsBackgroundDispose
}
